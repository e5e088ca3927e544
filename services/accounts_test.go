package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/database/dbtest"
	"github.com/rpupo63/diary-backend/errs"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "Foo.Bar@example.com", NormalizeEmail("  Foo.Bar@EXAMPLE.Com "))
	assert.Equal(t, "no-at-sign", NormalizeEmail("no-at-sign"))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("a@example.com"))
	for _, bad := range []string{"", "plain", "a@b", "Name <a@example.com>", "a@@example.com"} {
		assert.Error(t, ValidateEmail(bad), bad)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "ok", password: "s3cret-diary", wantErr: false},
		{name: "too short", password: "abc1234", wantErr: true},
		{name: "numeric", password: "1234567890", wantErr: true},
		{name: "same as email", password: "writer@example.com", wantErr: true},
		{name: "same as local part", password: "WRITER-01", wantErr: false},
		{name: "local part", password: "Writer12", wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, "writer@example.com")
			if tt.wantErr {
				assert.True(t, errs.IsInvalidFieldError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
	assert.Error(t, ValidatePassword("diarist1", "diarist1@example.com"))
}

func newAccounts(t *testing.T) (*Accounts, database.Database) {
	t.Helper()
	db := database.New(dbtest.Open(t))
	return NewAccounts(db.UserRepo()), db
}

func TestAccounts_Register(t *testing.T) {
	ctx := context.Background()
	a, _ := newAccounts(t)

	user, err := a.Register(ctx, RegistrationForm{Email: "New@Example.COM", Password1: "long-enough", Password2: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, "New@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.False(t, user.IsStaff)
	assert.NotEqual(t, "long-enough", user.PasswordHash)

	_, err = a.Register(ctx, RegistrationForm{Email: "New@example.com", Password1: "long-enough", Password2: "long-enough"})
	require.Error(t, err)
	var apiErr *errs.ApiErr
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "email", apiErr.Field)

	_, err = a.Register(ctx, RegistrationForm{Email: "other@example.com", Password1: "long-enough", Password2: "different"})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "password2", apiErr.Field)
}

func TestAccounts_Authenticate(t *testing.T) {
	ctx := context.Background()
	a, db := newAccounts(t)
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	user, err := a.Register(ctx, RegistrationForm{Email: "me@example.com", Password1: "long-enough", Password2: "long-enough"})
	require.NoError(t, err)

	got, err := a.Authenticate(ctx, "me@EXAMPLE.com", "long-enough")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	require.NotNil(t, got.LastLogin)
	assert.True(t, now.Equal(*got.LastLogin))

	_, err = a.Authenticate(ctx, "me@example.com", "wrong-password")
	assert.True(t, errs.IsInvalidCredentialsError(err))

	_, err = a.Authenticate(ctx, "nobody@example.com", "long-enough")
	assert.True(t, errs.IsInvalidCredentialsError(err))

	require.NoError(t, db.UserRepo().SetActive(ctx, user.ID, false))
	_, err = a.Authenticate(ctx, "me@example.com", "long-enough")
	assert.True(t, errs.IsInvalidCredentialsError(err))
}

func TestAccounts_CreateSuperuser(t *testing.T) {
	a, _ := newAccounts(t)
	user, err := a.CreateSuperuser(context.Background(), "root@example.com", "pw")
	require.NoError(t, err)
	assert.True(t, user.IsStaff)
	assert.True(t, user.IsSuperuser)
	assert.True(t, user.IsActive)
}
