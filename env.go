package main

import (
	"fmt"
	"os"
	"time"

	"github.com/netwatcherio/speedflux/config"
	log "github.com/sirupsen/logrus"
)

const VERSION = "0.3.0"

func banner() string {
	return fmt.Sprintf("speedflux v%s - %d", VERSION, time.Now().Year())
}

// loadEnvFile loads the dotenv file before the environment is read, so its
// values sit below real environment variables.
func loadEnvFile(envFile string) error {
	if envFile == "" {
		return nil
	}
	if _, err := os.Stat(envFile); err != nil {
		log.Debugf("No env file at %s, using the environment only", envFile)
		return nil
	}
	log.Infof("Loading environment from %s", envFile)
	return config.LoadEnvFile(envFile)
}

// collectConfig layers file < environment < flags.
func collectConfig(configFile string, flags func() config.RawConfig) (config.RawConfig, error) {
	var raw config.RawConfig

	if configFile != "" {
		fromFile, err := config.LoadFile(configFile)
		if err != nil {
			return raw, fmt.Errorf("read config file: %w", err)
		}
		raw.Merge(fromFile)
	}
	raw.Merge(config.FromEnv(os.LookupEnv))
	raw.Merge(flags())
	return raw, nil
}
