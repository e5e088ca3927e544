package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/database/dbtest"
	"github.com/rpupo63/diary-backend/errs"
	"github.com/rpupo63/diary-backend/models"
)

func newDB(t *testing.T) database.Database {
	t.Helper()
	return database.New(dbtest.Open(t))
}

func addUser(t *testing.T, db database.Database, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", IsActive: true}
	require.NoError(t, db.UserRepo().Add(context.Background(), u))
	return u
}

func addEntry(t *testing.T, db database.Database, owner uuid.UUID, title string, day time.Time, views int64) *models.DiaryEntry {
	t.Helper()
	e := &models.DiaryEntry{UserID: owner, Title: title, Content: "body of " + title, Date: models.DateOf(day), ViewsCount: views}
	require.NoError(t, db.DiaryEntryRepo().Add(context.Background(), e))
	return e
}

func titles(entries []models.DiaryEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	db := newDB(t)
	addUser(t, db, "a@example.com")

	err := db.UserRepo().Add(context.Background(), &models.User{Email: "a@example.com", PasswordHash: "x"})
	require.Error(t, err)
	assert.True(t, errs.IsAlreadyExists(err))
}

func TestTagRepo_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)

	first, created, err := db.TagRepo().GetOrCreate(ctx, "travel")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := db.TagRepo().GetOrCreate(ctx, "travel")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	all, err := db.TagRepo().FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	err = db.TagRepo().Add(ctx, &models.Tag{Name: "travel"})
	assert.True(t, errs.IsAlreadyExists(err))
}

func TestTagRepo_Search(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	for _, name := range []string{"Cabbage", "abc", "xyz", "100%", "a_c"} {
		_, _, err := db.TagRepo().GetOrCreate(ctx, name)
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "empty returns all", query: "", want: []string{"100%", "Cabbage", "a_c", "abc", "xyz"}},
		{name: "case insensitive", query: "ABC", want: []string{"abc"}},
		{name: "substring", query: "b", want: []string{"Cabbage", "abc"}},
		{name: "percent is literal", query: "%", want: []string{"100%"}},
		{name: "underscore is literal", query: "_", want: []string{"a_c"}},
		{name: "no match", query: "zzz", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, err := db.TagRepo().Search(ctx, tt.query)
			require.NoError(t, err)
			got := []string{}
			for _, tag := range tags {
				got = append(got, tag.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTagRepo_FindByIDsSkipsUnknown(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	tag, _, err := db.TagRepo().GetOrCreate(ctx, "known")
	require.NoError(t, err)

	tags, err := db.TagRepo().FindByIDs(ctx, []uuid.UUID{tag.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "known", tags[0].Name)
}

func TestDiaryEntryRepo_DefaultsOnCreate(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	u := addUser(t, db, "a@example.com")

	fixed := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	models.Now = func() time.Time { return fixed }
	t.Cleanup(func() { models.Now = time.Now })

	e := &models.DiaryEntry{UserID: u.ID, Content: "hello"}
	require.NoError(t, db.DiaryEntryRepo().Add(ctx, e))

	got, err := db.DiaryEntryRepo().FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultEntryTitle, got.Title)
	assert.Equal(t, "2024-03-09", got.Day().Format(models.DateLayout))
}

func TestDiaryEntryRepo_FindByTagSort(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	u := addUser(t, db, "a@example.com")
	tag, _, err := db.TagRepo().GetOrCreate(ctx, "life")
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := addEntry(t, db, u.ID, "a", base, 5)
	b := addEntry(t, db, u.ID, "b", base.AddDate(0, 0, 2), 1)
	c := addEntry(t, db, u.ID, "c", base.AddDate(0, 0, 1), 9)
	addEntry(t, db, u.ID, "untagged", base, 100)
	for _, e := range []*models.DiaryEntry{a, b, c} {
		require.NoError(t, db.DiaryEntryRepo().AttachTags(ctx, e, []models.Tag{*tag}))
	}

	tests := []struct {
		sort string
		want []string
	}{
		{sort: "popular", want: []string{"c", "a", "b"}},
		{sort: "oldest", want: []string{"a", "c", "b"}},
		{sort: "newest", want: []string{"b", "c", "a"}},
		{sort: "", want: []string{"b", "c", "a"}},
		{sort: "bogus", want: []string{"b", "c", "a"}},
	}
	for _, tt := range tests {
		t.Run("sort="+tt.sort, func(t *testing.T) {
			entries, err := db.DiaryEntryRepo().FindByTag(ctx, tag.ID, database.ParseEntrySort(tt.sort))
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(entries))
		})
	}
}

func TestDiaryEntryRepo_FindByDateAndMonth(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	u := addUser(t, db, "a@example.com")

	day := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	addEntry(t, db, u.ID, "first", day, 0)
	addEntry(t, db, u.ID, "second", day, 0)
	addEntry(t, db, u.ID, "other-day", day.AddDate(0, 0, 1), 0)
	addEntry(t, db, u.ID, "other-month", day.AddDate(0, 1, 0), 0)

	onDay, err := db.DiaryEntryRepo().FindByDate(ctx, day)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"first", "second"}, titles(onDay))

	inMonth, err := db.DiaryEntryRepo().FindByMonth(ctx, 2024, time.February)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"first", "second", "other-day"}, titles(inMonth))
}

func TestDiaryEntryRepo_FindOwned(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	owner := addUser(t, db, "owner@example.com")
	other := addUser(t, db, "other@example.com")
	e := addEntry(t, db, owner.ID, "mine", time.Now(), 0)

	_, err := db.DiaryEntryRepo().FindOwned(ctx, e.ID, owner.ID)
	require.NoError(t, err)

	_, err = db.DiaryEntryRepo().FindOwned(ctx, e.ID, other.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestDiaryEntryRepo_TagAssociations(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	u := addUser(t, db, "a@example.com")
	e := addEntry(t, db, u.ID, "tagged", time.Now(), 0)

	x, _, err := db.TagRepo().GetOrCreate(ctx, "x")
	require.NoError(t, err)
	y, _, err := db.TagRepo().GetOrCreate(ctx, "y")
	require.NoError(t, err)

	require.NoError(t, db.DiaryEntryRepo().AttachTags(ctx, e, []models.Tag{*x, *y}))
	require.NoError(t, db.DiaryEntryRepo().LoadTags(ctx, e))
	assert.Len(t, e.Tags, 2)

	require.NoError(t, db.DiaryEntryRepo().DetachTags(ctx, e, []models.Tag{*x}))
	require.NoError(t, db.DiaryEntryRepo().LoadTags(ctx, e))
	require.Len(t, e.Tags, 1)
	assert.Equal(t, "y", e.Tags[0].Name)

	require.NoError(t, db.DiaryEntryRepo().Delete(ctx, e.ID))
	_, err = db.DiaryEntryRepo().FindByID(ctx, e.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	remaining, err := db.TagRepo().FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestDiaryEntryRepo_UpdateFieldsKeepsViews(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	u := addUser(t, db, "a@example.com")
	e := addEntry(t, db, u.ID, "before", time.Now(), 7)

	e.Title = "after"
	e.ViewsCount = 0
	require.NoError(t, db.DiaryEntryRepo().UpdateFields(ctx, e))

	got, err := db.DiaryEntryRepo().FindByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
	assert.EqualValues(t, 7, got.ViewsCount)
}

func TestDiaryEntryRepo_IncrementViews(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	u := addUser(t, db, "a@example.com")
	e := addEntry(t, db, u.ID, "popular", time.Now(), 0)

	for i := 1; i <= 3; i++ {
		n, err := db.DiaryEntryRepo().IncrementViews(ctx, e.ID)
		require.NoError(t, err)
		assert.EqualValues(t, i, n)
	}

	_, err := db.DiaryEntryRepo().IncrementViews(ctx, uuid.New())
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestDiaryEntryRepo_Search(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	alice := addUser(t, db, "alice@example.com")
	bob := addUser(t, db, "bob@example.com")
	addEntry(t, db, alice.ID, "Morning run", time.Now(), 0)
	addEntry(t, db, bob.ID, "Groceries", time.Now(), 0)

	got, total, err := db.DiaryEntryRepo().Search(ctx, "RUN", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, []string{"Morning run"}, titles(got))

	got, total, err = db.DiaryEntryRepo().Search(ctx, "bob@", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, []string{"Groceries"}, titles(got))
}

func TestUserRepo_DeleteCascades(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	u := addUser(t, db, "gone@example.com")
	keep := addUser(t, db, "keep@example.com")

	e := addEntry(t, db, u.ID, "bye", time.Now(), 0)
	kept := addEntry(t, db, keep.ID, "stay", time.Now(), 0)
	tag, _, err := db.TagRepo().GetOrCreate(ctx, "shared")
	require.NoError(t, err)
	require.NoError(t, db.DiaryEntryRepo().AttachTags(ctx, e, []models.Tag{*tag}))

	require.NoError(t, db.AccessLogRepo().Add(ctx, &models.AccessLog{IPAddress: "1.2.3.4", UserAgent: "ua", UserID: &u.ID}))

	require.NoError(t, db.UserRepo().Delete(ctx, u.ID))

	_, err = db.UserRepo().FindByID(ctx, u.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	_, err = db.DiaryEntryRepo().FindByID(ctx, e.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	_, err = db.DiaryEntryRepo().FindByID(ctx, kept.ID)
	assert.NoError(t, err)

	_, err = db.TagRepo().FindByName(ctx, "shared")
	assert.NoError(t, err)

	logs, total, err := db.AccessLogRepo().List(ctx, database.AccessLogFilter{})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Nil(t, logs[0].UserID)
	assert.Equal(t, "guest", logs[0].Visitor())

	assert.True(t, errors.Is(db.UserRepo().Delete(ctx, u.ID), gorm.ErrRecordNotFound))
}

func TestAccessLogRepo_List(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	u := addUser(t, db, "staff@example.com")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ref := "https://example.org/"
	rows := []*models.AccessLog{
		{Timestamp: base, IPAddress: "10.0.0.1", UserAgent: "curl/8"},
		{Timestamp: base.Add(time.Minute), IPAddress: "10.0.0.2", UserAgent: "Firefox", Referer: &ref},
		{Timestamp: base.Add(2 * time.Minute), IPAddress: "10.0.0.3", UserAgent: "Safari", UserID: &u.ID},
	}
	for _, r := range rows {
		require.NoError(t, db.AccessLogRepo().Add(ctx, r))
	}

	all, total, err := db.AccessLogRepo().List(ctx, database.AccessLogFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, "10.0.0.3", all[0].IPAddress)
	assert.Equal(t, "staff@example.com", all[0].Visitor())

	page, total, err := db.AccessLogRepo().List(ctx, database.AccessLogFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "10.0.0.2", page[0].IPAddress)

	for _, q := range []string{"firefox", "example.org", "staff@", "10.0.0.1"} {
		found, n, err := db.AccessLogRepo().List(ctx, database.AccessLogFilter{Query: q})
		require.NoError(t, err, q)
		assert.EqualValues(t, 1, n, q)
		assert.Len(t, found, 1, q)
	}
}
