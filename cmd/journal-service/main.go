package main

import (
	"flag"
	"os"

	"github.com/joho/godotenv"

	"github.com/echovault/echovault/internal/config"
	"github.com/echovault/echovault/internal/logger"
	"github.com/echovault/echovault/journalservice"
)

func main() {
	// Optional build-target flag override (local | cloud-dev | cloud)
	buildTarget := flag.String("build-target", "", "Override BUILD_TARGET (local, cloud-dev, cloud)")
	envFile := flag.String("env-file", ".env", "Load environment variables from this file when it exists")
	flag.Parse()

	log := logger.New("journal-service")

	if err := godotenv.Load(*envFile); err == nil {
		log.Info().Str("file", *envFile).Msg("Loaded environment file")
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *buildTarget != "" {
		cfg.BuildTarget = *buildTarget
		if os.Getenv("ECHOVAULT_DB_DRIVER") == "" {
			// re-derive the driver for the new target
			cfg.DBDriver = "auto"
		}
		if err := cfg.ResolveDefaults(); err != nil {
			log.Fatal().Err(err).Msg("Invalid build-target override")
		}
	}

	if err := journalservice.RunWithConfig(cfg); err != nil {
		log.Error().Err(err).Msg("Journal service stopped with error")
		os.Exit(1)
	}
}
