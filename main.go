package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rpupo63/post-studio-backend/api"
	"github.com/rpupo63/post-studio-backend/config"
	"github.com/rpupo63/post-studio-backend/database"
	"github.com/rpupo63/post-studio-backend/database/migrations"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const serviceName = "post-studio-backend"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// setupLogging configures the global zerolog logger from LOG_LEVEL and APP_ENV.
func setupLogging(c *viper.Viper) {
	level, err := zerolog.ParseLevel(strings.ToLower(config.GetString(c, "LOG_LEVEL", "info")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.GetString(c, "APP_ENV", "production") == "development" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
}

// connectionString prefers DATABASE_URL and falls back to the Supabase parts
// when DB_TYPE=supa.
func connectionString(c *viper.Viper) (string, error) {
	if dsn := config.GetString(c, "DATABASE_URL", ""); dsn != "" {
		return dsn, nil
	}

	dbType := config.GetString(c, "DB_TYPE", "")
	switch dbType {
	case "supa":
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=require",
			config.GetString(c, "SUPABASE_DB_HOST", ""),
			config.GetString(c, "SUPABASE_DB_USER", ""),
			config.GetString(c, "SUPABASE_DB_PASSWORD", ""),
			config.GetString(c, "SUPABASE_DB_NAME", ""),
			config.GetString(c, "SUPABASE_DB_PORT", "5432"),
		), nil
	default:
		return "", fmt.Errorf("set DATABASE_URL or DB_TYPE=supa (got DB_TYPE=%q)", dbType)
	}
}

func openDatabase(c *viper.Viper) (*gorm.DB, error) {
	connStr, err := connectionString(c)
	if err != nil {
		return nil, err
	}

	gormLog := log.With().Str("component", "gorm").Logger()
	newLogger := logger.New(
		&gormLog,
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  connStr,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		PrepareStmt:    false,
		TranslateError: true,
		Logger:         newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	var result int
	if err := db.Raw("SELECT 1").Scan(&result).Error; err != nil {
		return nil, fmt.Errorf("test database connection: %w", err)
	}
	return db, nil
}

func runServe(c *viper.Viper) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}

	if config.GetBool(c, "AUTO_MIGRATE", false) {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := migrations.Up(sqlDB); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		status, err := migrations.CurrentStatus(sqlDB)
		if err != nil {
			return err
		}
		if err := status.Check(); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		log.Info().Uint("version", status.Version).Msg("migrations applied")
	}

	store, err := database.New(db)
	if err != nil {
		return fmt.Errorf("detect schema: %w", err)
	}

	server, err := api.NewServer(store, c)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	errChannel := make(chan error, 1)
	go server.Start(errChannel)
	go listenToInterrupt(errChannel)

	fatalErr := <-errChannel
	log.Info().Msgf("Closing server: %v", fatalErr)

	server.ShutdownGracefully(30 * time.Second)
	return nil
}

// listenToInterrupt waits for SIGINT or SIGTERM and then sends an error to the error channel.
func listenToInterrupt(errChannel chan<- error) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	errChannel <- fmt.Errorf("%s", <-c)
}
