package config

import (
	"errors"
	"strconv"
	"strings"
)

const (
	BackendCLI    = "cli"
	BackendNative = "native"
)

type SpeedtestConfig struct {
	Cron    string
	Server  *uint64
	Fields  []string
	Tags    []string
	Backend string
}

// ValidateSpeedtest returns nil, nil when cron, fields and tags are all
// unset. A server id on its own is rejected.
func ValidateSpeedtest(raw RawSpeedtestConfig) (*SpeedtestConfig, error) {
	if raw.Cron == nil && raw.Fields == nil && raw.Tags == nil {
		if raw.Server != nil {
			return nil, &ValidationError{
				Field: "SPEEDTEST_SERVER",
				Err:   ErrDependentField,
				Msg:   `SPEEDTEST_SERVER requires other "SPEEDTEST_" parameters`,
			}
		}
		return nil, nil
	}

	if raw.Cron == nil {
		return nil, missing("SPEEDTEST_CRON", "SPEEDTEST_")
	}
	if raw.Fields == nil {
		return nil, missing("SPEEDTEST_FIELDS", "SPEEDTEST_")
	}
	if raw.Tags == nil {
		return nil, missing("SPEEDTEST_TAGS", "SPEEDTEST_")
	}

	cfg := &SpeedtestConfig{
		Cron:    *raw.Cron,
		Fields:  ParseList(*raw.Fields),
		Tags:    ParseList(*raw.Tags),
		Backend: BackendCLI,
	}

	if err := checkCron("SPEEDTEST_CRON", cfg.Cron); err != nil {
		return nil, err
	}

	if raw.Server != nil {
		id, err := strconv.ParseUint(strings.TrimSpace(*raw.Server), 10, 64)
		if err != nil {
			return nil, invalid("SPEEDTEST_SERVER", *raw.Server, err)
		}
		cfg.Server = &id
	}

	if raw.Backend != nil {
		switch *raw.Backend {
		case BackendCLI, BackendNative:
			cfg.Backend = *raw.Backend
		default:
			return nil, invalid("SPEEDTEST_BACKEND", *raw.Backend, errors.New("expected cli or native"))
		}
	}

	return cfg, nil
}

// ParseList splits a comma separated list of identifiers. Names are not
// checked against the measurement schema here.
func ParseList(text string) []string {
	var out []string
	for _, s := range strings.Split(text, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
