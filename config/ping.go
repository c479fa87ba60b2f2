package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

const (
	DefaultPingTimeout = 1000 * time.Millisecond
	DefaultPingBytes   = 32
	DefaultPingCount   = 5
)

type PingConfig struct {
	Cron    string
	Hosts   []string
	Timeout time.Duration
	Bytes   int
	Count   int
	Gateway bool
}

var hostnameLabel = regexp.MustCompile(`^[A-Za-z0-9_]([A-Za-z0-9_-]{0,61}[A-Za-z0-9_])?$`)

// ValidatePing returns nil, nil when neither PING_CRON nor PING_HOSTS is set.
func ValidatePing(raw RawPingConfig) (*PingConfig, error) {
	if raw.Cron == nil && raw.Hosts == nil {
		return nil, nil
	}
	if raw.Cron == nil {
		return nil, missing("PING_CRON", "PING_")
	}
	if raw.Hosts == nil {
		return nil, missing("PING_HOSTS", "PING_")
	}

	hosts, err := ParseHosts(*raw.Hosts)
	if err != nil {
		return nil, err
	}

	cfg := &PingConfig{
		Cron:    *raw.Cron,
		Hosts:   hosts,
		Timeout: DefaultPingTimeout,
		Bytes:   DefaultPingBytes,
		Count:   DefaultPingCount,
	}

	var errs []error
	if err := checkCron("PING_CRON", cfg.Cron); err != nil {
		errs = append(errs, err)
	}
	if raw.Timeout != nil {
		ms, err := positiveInt("PING_TIMEOUT", *raw.Timeout)
		if err != nil {
			errs = append(errs, err)
		}
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	if raw.Bytes != nil {
		n, err := positiveInt("PING_BYTES", *raw.Bytes)
		if err != nil {
			errs = append(errs, err)
		}
		cfg.Bytes = n
	}
	if raw.Count != nil {
		n, err := positiveInt("PING_COUNT", *raw.Count)
		if err != nil {
			errs = append(errs, err)
		}
		cfg.Count = n
	}
	if raw.Gateway != nil {
		b, err := strconv.ParseBool(*raw.Gateway)
		if err != nil {
			errs = append(errs, invalid("PING_GATEWAY", *raw.Gateway, err))
		}
		cfg.Gateway = b
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// ParseHosts splits a comma separated list and checks that every entry is a
// hostname or an IP literal. Surrounding whitespace is trimmed.
func ParseHosts(text string) ([]string, error) {
	var hosts []string
	for _, s := range strings.Split(text, ",") {
		entry := strings.TrimSpace(s)
		h, err := toASCII(entry)
		if err == nil {
			err = checkHost(h)
		}
		if err != nil {
			return nil, &ValidationError{
				Field: "PING_HOSTS",
				Err:   ErrInvalidHost,
				Msg:   fmt.Sprintf("%q: %v", entry, err),
			}
		}
		hosts = append(hosts, strings.TrimSuffix(strings.TrimPrefix(h, "["), "]"))
	}
	return hosts, nil
}

// toASCII converts internationalized names to punycode, as the resolver
// and the ping binaries expect. ASCII input passes through unchanged.
func toASCII(h string) (string, error) {
	for i := 0; i < len(h); i++ {
		if h[i] >= utf8.RuneSelf {
			return idna.Lookup.ToASCII(h)
		}
	}
	return h, nil
}

func checkHost(h string) error {
	if h == "" {
		return errors.New("empty host")
	}
	if strings.HasPrefix(h, "[") {
		if !strings.HasSuffix(h, "]") || net.ParseIP(h[1:len(h)-1]) == nil {
			return errors.New("invalid IPv6 address")
		}
		return nil
	}
	if net.ParseIP(h) != nil {
		return nil
	}
	if len(h) > 253 {
		return errors.New("hostname too long")
	}
	for _, label := range strings.Split(strings.TrimSuffix(h, "."), ".") {
		if !hostnameLabel.MatchString(label) {
			return fmt.Errorf("invalid label %q", label)
		}
	}
	return nil
}

func positiveInt(field, text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, invalid(field, text, err)
	}
	if n <= 0 {
		return 0, invalid(field, text, errors.New("must be greater than zero"))
	}
	return n, nil
}
