package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	api "github.com/rpupo63/diary-backend/api"
	"github.com/rpupo63/diary-backend/auth"
	"github.com/rpupo63/diary-backend/config"
	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/models"
	"github.com/rpupo63/diary-backend/services"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Info().Msg("Initializing app...")

	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("Error loading .env file")
	}

	ctx := context.Background()
	c := config.New()
	if err := config.LoadSSM(ctx, c); err != nil {
		log.Fatal().Err(err).Msg("Error loading SSM parameters")
	}
	if config.GetBool(c, "DEBUG", false) {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.Open(database.Options{
		DSN:          config.GetString(c, "DATABASE_URL", ""),
		ReplicaDSNs:  config.GetList(c, "DATABASE_REPLICA_URL"),
		MaxOpenConns: config.GetInt(c, "DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns: config.GetInt(c, "DB_MAX_IDLE_CONNS", 5),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}

	// If generating models, run generation and exit
	if strings.ToLower(config.GetString(c, "GENERATE_MODELS", "")) == "true" {
		if err := models.GenerateModels(db, config.GetString(c, "GENERATE_OUT_PATH", "./generated")); err != nil {
			log.Fatal().Err(err).Msg("Error generating models")
		}
		return
	}

	// If generating column mismatch report, run report and exit
	if config.GetBool(c, "GENERATE_COLUMN_REPORT", false) {
		models.GenerateColumnMismatchReport(db)
		return
	}

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Error migrating database")
	}
	currentDB := database.New(db)

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "createsuperuser":
			if err := createSuperuser(ctx, currentDB, os.Stdin, os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "migrate":
			log.Info().Msg("Migrations applied")
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q (expected createsuperuser or migrate)\n", os.Args[1])
			os.Exit(2)
		}
	}

	deps, err := newDependencies(ctx, c)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing dependencies")
	}

	errChannel := make(chan error)
	defer close(errChannel)

	server, err := api.NewServer(currentDB, c, deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing server")
	}

	go server.Start(errChannel)

	// Listen for interrupt signals to gracefully shutdown the server
	go listenToInterrupt(errChannel)

	fatalErr := <-errChannel
	log.Info().Msgf("Closing server: %v", fatalErr)

	server.ShutdownGracefully(30 * time.Second)
}

// newDependencies builds the session manager and image store from config.
func newDependencies(ctx context.Context, c map[string]string) (api.Dependencies, error) {
	var deps api.Dependencies

	secret := config.GetString(c, "SECRET_KEY", "")
	if secret == "" {
		return deps, fmt.Errorf("SECRET_KEY is required")
	}

	var revoker auth.Revoker = auth.NewMemoryRevoker()
	if addr := config.GetString(c, "REDIS_ADDR", ""); addr != "" {
		client, err := auth.NewRedisClient(ctx, addr, config.GetString(c, "REDIS_PASSWORD", ""), config.GetInt(c, "REDIS_DB", 0))
		if err != nil {
			return deps, fmt.Errorf("connect to redis: %w", err)
		}
		revoker = auth.NewRedisRevoker(client)
		log.Info().Str("addr", addr).Msg("Session revocations stored in redis")
	}
	ttl := time.Duration(config.GetInt(c, "SESSION_TTL_HOURS", 24*14)) * time.Hour
	deps.Sessions = auth.NewSessions(secret, ttl, revoker)

	if bucket := config.GetString(c, "S3_BUCKET", ""); bucket != "" {
		store, err := services.NewS3ImageStore(ctx, services.S3Options{
			Region:       config.GetString(c, "S3_REGION", config.GetString(c, "AWS_REGION", "")),
			Bucket:       bucket,
			Endpoint:     config.GetString(c, "S3_ENDPOINT", ""),
			AccessKey:    config.GetString(c, "S3_ACCESS_KEY", ""),
			SecretKey:    config.GetString(c, "S3_SECRET_KEY", ""),
			UsePathStyle: config.GetBool(c, "S3_USE_PATH_STYLE", false),
			URLExpiry:    config.GetDuration(c, "S3_URL_EXPIRY", 15*time.Minute),
		})
		if err != nil {
			return deps, err
		}
		deps.Images = store
		return deps, nil
	}

	store, err := services.NewDiskImageStore(config.GetString(c, "MEDIA_ROOT", "./media"), "/media/")
	if err != nil {
		return deps, err
	}
	deps.Images = store
	deps.MediaRoot = store.Root()
	log.Info().Str("root", store.Root()).Msg("Using local image store")
	return deps, nil
}

// listenToInterrupt waits for SIGINT or SIGTERM and then sends an error to the error channel.
func listenToInterrupt(errChannel chan<- error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	errChannel <- fmt.Errorf("%s", <-c)
}
