// Package config turns optional, stringly-typed inputs into one validated
// configuration per enabled measurement kind.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultOrg    = "org"
	DefaultBucket = "speedtest"
)

// Config is the validated configuration. Ping and Speedtest are nil when
// the kind is disabled; there is no partially enabled state.
type Config struct {
	InfluxDBURL       *url.URL
	InfluxDBToken     string
	InfluxDBOrg       string
	InfluxDBBucket    string
	InfluxDBVerifySSL bool
	LogLevel          log.Level
	Namespace         string
	Platform          string
	MetricsAddr       string

	Ping      *PingConfig
	Speedtest *SpeedtestConfig
}

// Validate checks every field of raw and reports all problems at once.
func Validate(raw RawConfig) (*Config, error) {
	var errs []error

	cfg := &Config{
		InfluxDBOrg:       valueOr(raw.InfluxDBOrg, DefaultOrg),
		InfluxDBBucket:    valueOr(raw.InfluxDBBucket, DefaultBucket),
		InfluxDBVerifySSL: true,
		LogLevel:          log.InfoLevel,
		Namespace:         valueOr(raw.Namespace, ""),
		MetricsAddr:       valueOr(raw.MetricsAddr, ""),
	}

	if raw.InfluxDBURL == nil {
		errs = append(errs, &ValidationError{Field: "INFLUXDB_URL", Err: ErrMissingRequiredField, Msg: "INFLUXDB_URL is required"})
	} else if u, err := parseHTTPURL(*raw.InfluxDBURL); err != nil {
		errs = append(errs, err)
	} else {
		cfg.InfluxDBURL = u
	}

	if raw.InfluxDBToken == nil {
		errs = append(errs, &ValidationError{Field: "INFLUXDB_TOKEN", Err: ErrMissingRequiredField, Msg: "INFLUXDB_TOKEN is required"})
	} else {
		cfg.InfluxDBToken = *raw.InfluxDBToken
	}

	if raw.InfluxDBVerifySSL != nil {
		b, err := strconv.ParseBool(*raw.InfluxDBVerifySSL)
		if err != nil {
			errs = append(errs, invalid("INFLUXDB_VERIFY_SSL", *raw.InfluxDBVerifySSL, err))
		}
		cfg.InfluxDBVerifySSL = b
	}

	if raw.LogLevel != nil {
		lvl, err := parseLogLevel(*raw.LogLevel)
		if err != nil {
			errs = append(errs, err)
		}
		cfg.LogLevel = lvl
	}

	if raw.Platform != nil {
		switch *raw.Platform {
		case "linux", "windows", "darwin", "native":
			cfg.Platform = *raw.Platform
		default:
			errs = append(errs, invalid("PING_PLATFORM", *raw.Platform, errors.New("expected linux, windows, darwin or native")))
		}
	}

	ping, err := ValidatePing(raw.Ping)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Ping = ping

	speedtest, err := ValidateSpeedtest(raw.Speedtest)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Speedtest = speedtest

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Enabled reports whether at least one measurement kind is configured.
func (c *Config) Enabled() bool {
	return c.Ping != nil || c.Speedtest != nil
}

func parseHTTPURL(text string) (*url.URL, error) {
	u, err := url.Parse(text)
	if err != nil {
		return nil, invalid("INFLUXDB_URL", text, err)
	}

	switch u.Scheme {
	case "http", "https":
		return u, nil
	default:
		return nil, &ValidationError{Field: "INFLUXDB_URL", Err: ErrInvalidURLScheme}
	}
}

func parseLogLevel(text string) (log.Level, error) {
	switch text {
	case "error", "warn", "info", "debug":
		return log.ParseLevel(text)
	default:
		return log.InfoLevel, invalid("LOG_LEVEL", text, fmt.Errorf("expected error, warn, info or debug"))
	}
}

func valueOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
