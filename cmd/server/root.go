package main

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kasku/chat-gateway/internal/config"
)

func newRootCmd(version string) *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "chat-gateway",
		Short:         "Chat gateway for bookkeeping over WhatsApp",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")

	load := func() (*config.Config, error) {
		// Load does not override variables already set in the environment.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("file", envFile).Msg("failed to load env file")
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		setLogLevel(cfg.LogLevel)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	rootCmd.AddCommand(
		newServeCmd(load),
		newSweepCmd(load),
		newQRCmd(load),
	)

	return rootCmd
}
