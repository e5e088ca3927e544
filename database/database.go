package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/rpupo63/diary-backend/database/migrations"
	"github.com/rpupo63/diary-backend/errs"
	"github.com/rpupo63/diary-backend/models"
)

type Database struct {
	db             *gorm.DB
	userRepo       *UserRepo
	tagRepo        *TagRepo
	diaryEntryRepo *DiaryEntryRepo
	accessLogRepo  *AccessLogRepo
}

// New initializes a new Database struct with each repository using a shared GORM database instance
func New(db *gorm.DB) Database {
	return Database{
		db:             db,
		userRepo:       NewUserRepo(db),
		tagRepo:        NewTagRepo(db),
		diaryEntryRepo: NewDiaryEntryRepo(db),
		accessLogRepo:  NewAccessLogRepo(db),
	}
}

// Accessor methods for each repository

func (d Database) UserRepo() *UserRepo {
	return d.userRepo
}

func (d Database) TagRepo() *TagRepo {
	return d.tagRepo
}

func (d Database) DiaryEntryRepo() *DiaryEntryRepo {
	return d.diaryEntryRepo
}

func (d Database) AccessLogRepo() *AccessLogRepo {
	return d.accessLogRepo
}

// Ping checks that the primary connection answers.
func (d Database) Ping(ctx context.Context) error {
	var result int
	return d.db.WithContext(ctx).Raw("SELECT 1").Scan(&result).Error
}

// Options configures Open.
type Options struct {
	DSN           string
	ReplicaDSNs   []string
	LogLevel      logger.LogLevel
	SlowThreshold time.Duration
	MaxOpenConns  int
	MaxIdleConns  int
}

// Open connects to postgres. Reads are spread over ReplicaDSNs when any are given.
func Open(opts Options) (*gorm.DB, error) {
	if opts.DSN == "" {
		return nil, errs.NewMissingRequiredFieldError("DATABASE_URL")
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}
	if opts.SlowThreshold == 0 {
		opts.SlowThreshold = 10 * time.Second
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  opts.DSN,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		PrepareStmt:    false,
		Logger:         NewGormLogger(opts.LogLevel, opts.SlowThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if len(opts.ReplicaDSNs) > 0 {
		replicas := make([]gorm.Dialector, 0, len(opts.ReplicaDSNs))
		for _, dsn := range opts.ReplicaDSNs {
			replicas = append(replicas, postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: true}))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas:          replicas,
			Policy:            dbresolver.RandomPolicy{},
			TraceResolverMode: opts.LogLevel >= logger.Info,
		})
		if err := db.Use(resolver); err != nil {
			return nil, fmt.Errorf("register read replicas: %w", err)
		}
		log.Info().Int("replicas", len(replicas)).Msg("Read replicas registered")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// gooseUp is a seam for tests.
var gooseUp = func(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, sqlDB, ".")
}

// Migrate applies the embedded SQL migrations.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := gooseUp(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// AutoMigrate builds the schema straight from the models. Used against
// throwaway databases (sqlite in tests, model generation).
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Tag{}, &models.DiaryEntry{}, &models.AccessLog{})
}

// zerologWriter routes gorm's logger output through zerolog.
type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	log.Warn().Str("component", "gorm").Msg(msg)
}

func NewGormLogger(level logger.LogLevel, slow time.Duration) logger.Interface {
	return logger.New(zerologWriter{}, logger.Config{
		SlowThreshold:             slow,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// likePattern escapes LIKE wildcards in q and wraps it for a substring match.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(q)) + "%"
}
