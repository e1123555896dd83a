/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zmahdi/wasla/server/domain"
	"github.com/zmahdi/wasla/server/repository"
	"github.com/zmahdi/wasla/server/usecase"
)

var (
	cfgFile string
	db      *sql.DB
	repo    *repository.Repository
	uc      *usecase.Usecase
)

const (
	dbPathKey       = "db_path"
	historyLimitKey = "history_limit"
	expiryDaysKey   = "expiry_days"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "waslactl",
	Short: "Operator tooling for the wasla chat server",
	Long: `waslactl opens the server's database directly and runs maintenance
and inspection tasks: sweeping stale friend requests, checking a user's
friend graph, and searching the user directory.

Run it against a stopped server or a live one; SQLite's WAL mode keeps
reads and the sweep safe alongside the server process.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", viper.GetString(dbPathKey))
		conn, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		if err := conn.Ping(); err != nil {
			return fmt.Errorf("failed to reach database: %w", err)
		}
		db = conn

		repo = repository.NewRepository(db)
		if err := repo.Migrate(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		cfg := domain.Config{
			DBPath:       viper.GetString(dbPathKey),
			HistoryLimit: viper.GetInt(historyLimitKey),
			RelayMode:    domain.RelayPersistFirst,
			ExpiryDays:   viper.GetInt(expiryDaysKey),
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		uc = usecase.NewUsecase(repo, domain.NewPresenceRegistry(), domain.NewRoomRegistry(), cfg, logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if db != nil {
			return db.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.waslactl.yaml)")
	rootCmd.PersistentFlags().String("db", "wasla.db", "Path to the server's SQLite database")

	viper.BindPFlag(dbPathKey, rootCmd.PersistentFlags().Lookup("db"))
	viper.SetDefault(dbPathKey, "wasla.db")
	viper.SetDefault(historyLimitKey, 50)
	viper.SetDefault(expiryDaysKey, 30)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".waslactl" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".waslactl")
	}

	viper.SetEnvPrefix("WASLA")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
