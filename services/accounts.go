package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rpupo63/diary-backend/auth"
	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/errs"
	"github.com/rpupo63/diary-backend/models"
)

const MinPasswordLength = 8

// RegistrationForm is what the sign-up page posts.
type RegistrationForm struct {
	Email     string
	Password1 string
	Password2 string
}

// Accounts owns the user rules: sign up, log in, superuser creation.
type Accounts struct {
	users *database.UserRepo
	now   func() time.Time
}

func NewAccounts(users *database.UserRepo) *Accounts {
	return &Accounts{users: users, now: time.Now}
}

// NormalizeEmail trims the address and lower-cases its domain part. The local
// part is kept as typed.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// ValidateEmail checks that email is a bare, well formed address.
func ValidateEmail(email string) error {
	if email == "" {
		return errs.NewFieldError("email", "This field is required.")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return errs.NewFieldError("email", "Enter a valid email address.")
	}
	return nil
}

// ValidatePassword applies the password rules:
//   - at least MinPasswordLength characters
//   - not entirely numeric
//   - not the same as the email or its local part
func ValidatePassword(password, email string) error {
	if len([]rune(password)) < MinPasswordLength {
		return errs.NewFieldError("password1", "This password is too short. It must contain at least 8 characters.")
	}
	numeric := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			numeric = false
			break
		}
	}
	if numeric {
		return errs.NewFieldError("password1", "This password is entirely numeric.")
	}
	lower := strings.ToLower(password)
	local := email
	if at := strings.LastIndex(email, "@"); at >= 0 {
		local = email[:at]
	}
	if lower == strings.ToLower(email) || lower == strings.ToLower(local) {
		return errs.NewFieldError("password1", "The password is too similar to the email address.")
	}
	return nil
}

// Register validates form and creates an active, non-staff user.
func (a *Accounts) Register(ctx context.Context, form RegistrationForm) (*models.User, error) {
	email := NormalizeEmail(form.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if form.Password1 == "" {
		return nil, errs.NewFieldError("password1", "This field is required.")
	}
	if form.Password1 != form.Password2 {
		return nil, errs.NewFieldError("password2", "The two password fields didn't match.")
	}
	if err := ValidatePassword(form.Password1, email); err != nil {
		return nil, err
	}
	return a.create(ctx, email, form.Password1, false)
}

// CreateSuperuser creates an active staff account with every permission.
func (a *Accounts) CreateSuperuser(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, errs.NewFieldError("password1", "This field is required.")
	}
	return a.create(ctx, email, password, true)
}

func (a *Accounts) create(ctx context.Context, email, password string, superuser bool) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, errs.NewInternalErrorWithCause("hash password", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsStaff:      superuser,
		IsSuperuser:  superuser,
		DateJoined:   a.now().UTC(),
	}
	if err := a.users.Add(ctx, user); err != nil {
		if errs.IsAlreadyExists(err) {
			return nil, errs.NewFieldError("email", "A user with that email already exists.")
		}
		return nil, errs.NewDatabaseError("create", "user", err)
	}
	return user, nil
}

// Authenticate returns the user owning email when password matches. Unknown
// emails, wrong passwords and inactive users all fail the same way.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, errs.NewInvalidCredentialsError()
	}

	user, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewInvalidCredentialsError()
		}
		return nil, errs.NewDatabaseError("find", "user", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) || !user.IsActive {
		return nil, errs.NewInvalidCredentialsError()
	}

	now := a.now().UTC()
	if err := a.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, errs.NewDatabaseError("update", "user", err)
	}
	user.LastLogin = &now
	return user, nil
}

// UserByID loads the user a session points at.
func (a *Accounts) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return a.users.FindByID(ctx, id)
}
