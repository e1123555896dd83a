package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/viper"

	"github.com/zmahdi/wasla/server/adaptor"
	"github.com/zmahdi/wasla/server/domain"
	"github.com/zmahdi/wasla/server/repository"
	"github.com/zmahdi/wasla/server/usecase"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "err", err)
		os.Exit(1)
	}

	repo := repository.NewRepository(db)
	if err := repo.Migrate(); err != nil {
		logger.Error("migration failed", "err", err)
		os.Exit(1)
	}

	uc := usecase.NewUsecase(repo, domain.NewPresenceRegistry(), domain.NewRoomRegistry(), cfg, logger)

	app := fiber.New(fiber.Config{
		AppName:               "wasla",
		DisableStartupMessage: true,
	})
	adaptor.NewAdaptor(uc, cfg.JWTSecret, logger).Register(app)

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "relay_mode", string(cfg.RelayMode))
		if err := app.Listen(cfg.ListenAddr); err != nil {
			logger.Error("server stopped", "err", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				return app.ShutdownWithContext(ctx)
			},
			"database": func(ctx context.Context) error {
				return db.Close()
			},
		},
	)
	exitCode := <-wait
	logger.Info("shutdown complete", "code", exitCode)
	os.Exit(exitCode)
}

func loadConfig() (domain.Config, error) {
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("db_path", "wasla.db")
	viper.SetDefault("history_limit", 50)
	viper.SetDefault("relay_mode", string(domain.RelayPersistFirst))
	viper.SetDefault("expiry_days", 30)

	viper.SetEnvPrefix("WASLA")
	viper.AutomaticEnv()

	viper.SetConfigName("wasla")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/wasla")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return domain.Config{}, err
		}
	}

	cfg := domain.Config{
		ListenAddr:   viper.GetString("listen_addr"),
		DBPath:       viper.GetString("db_path"),
		HistoryLimit: viper.GetInt("history_limit"),
		RelayMode:    domain.RelayMode(viper.GetString("relay_mode")),
		JWTSecret:    viper.GetString("jwt_secret"),
		ExpiryDays:   viper.GetInt("expiry_days"),
	}
	if err := cfg.Validate(); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}
