package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"tabletop-chat/backend/pkg/config"
	"tabletop-chat/backend/pkg/logger"
)

var (
	envFile string
	version = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Tabletop chat backend",
	Long: `Backend of the tabletop role-playing chat.

The game master posts beats, the gamer personas and the coach answer
through a local or remote language model, and every message is pushed to
connected clients over websockets.

  server serve                      # run the HTTP, websocket and gRPC servers
  server migrate                    # create or update the database schema
  server seed games/valdor.yaml     # import a game and its gamers`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before reading configuration")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

// loadConfig reads the env file, when present, then the environment
func loadConfig() *config.Config {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}
	return config.Load()
}

func newLogger(cfg *config.Config) *logger.Logger {
	logCfg := logger.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.JSON = cfg.Logging.Format != "text"

	log := logger.New(logCfg)
	logger.SetGlobal(log)
	return log
}
