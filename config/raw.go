package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// RawConfig mirrors the external inputs one to one. A nil field was not set
// by any source.
type RawConfig struct {
	InfluxDBURL       *string
	InfluxDBToken     *string
	InfluxDBOrg       *string
	InfluxDBBucket    *string
	InfluxDBVerifySSL *string
	LogLevel          *string
	Namespace         *string
	Platform          *string
	MetricsAddr       *string

	Ping      RawPingConfig
	Speedtest RawSpeedtestConfig
}

type RawPingConfig struct {
	Cron    *string
	Hosts   *string
	Timeout *string
	Bytes   *string
	Count   *string
	Gateway *string
}

type RawSpeedtestConfig struct {
	Cron    *string
	Server  *string
	Fields  *string
	Tags    *string
	Backend *string
}

type option struct {
	env   string
	flag  string
	usage string
	field func(*RawConfig) **string
}

// key is the name used in YAML config files.
func (o option) key() string {
	return strings.ToLower(o.env)
}

var options = []option{
	{"INFLUXDB_URL", "influxdb-url", "InfluxDB URL (http or https)", func(r *RawConfig) **string { return &r.InfluxDBURL }},
	{"INFLUXDB_TOKEN", "influxdb-token", "InfluxDB API token", func(r *RawConfig) **string { return &r.InfluxDBToken }},
	{"INFLUXDB_ORG", "influxdb-org", "InfluxDB organization (default \"org\")", func(r *RawConfig) **string { return &r.InfluxDBOrg }},
	{"INFLUXDB_BUCKET", "influxdb-bucket", "InfluxDB bucket (default \"speedtest\")", func(r *RawConfig) **string { return &r.InfluxDBBucket }},
	{"INFLUXDB_VERIFY_SSL", "influxdb-verify-ssl", "verify the InfluxDB TLS certificate (default true)", func(r *RawConfig) **string { return &r.InfluxDBVerifySSL }},
	{"LOG_LEVEL", "log-level", "log level: error, warn, info, debug (default \"info\")", func(r *RawConfig) **string { return &r.LogLevel }},
	{"NAMESPACE", "namespace", "namespace tag added to every point", func(r *RawConfig) **string { return &r.Namespace }},
	{"PING_PLATFORM", "platform", "ping syntax: linux, windows, darwin or native (default detected)", func(r *RawConfig) **string { return &r.Platform }},
	{"METRICS_ADDR", "metrics-addr", "listen address for Prometheus metrics, disabled when empty", func(r *RawConfig) **string { return &r.MetricsAddr }},

	{"PING_CRON", "ping-cron", "cron expression for the ping service", func(r *RawConfig) **string { return &r.Ping.Cron }},
	{"PING_HOSTS", "ping-hosts", "comma separated hosts to ping", func(r *RawConfig) **string { return &r.Ping.Hosts }},
	{"PING_TIMEOUT", "ping-timeout", "ping timeout [milliseconds] (default 1000)", func(r *RawConfig) **string { return &r.Ping.Timeout }},
	{"PING_BYTES", "ping-bytes", "ping payload size [bytes] (default 32)", func(r *RawConfig) **string { return &r.Ping.Bytes }},
	{"PING_COUNT", "ping-count", "echo requests per host (default 5)", func(r *RawConfig) **string { return &r.Ping.Count }},
	{"PING_GATEWAY", "ping-gateway", "also ping the default gateway", func(r *RawConfig) **string { return &r.Ping.Gateway }},

	{"SPEEDTEST_CRON", "speedtest-cron", "cron expression for the speedtest service", func(r *RawConfig) **string { return &r.Speedtest.Cron }},
	{"SPEEDTEST_SERVER", "speedtest-server", "speedtest server id", func(r *RawConfig) **string { return &r.Speedtest.Server }},
	{"SPEEDTEST_FIELDS", "speedtest-fields", "comma separated speedtest fields to store, * for all", func(r *RawConfig) **string { return &r.Speedtest.Fields }},
	{"SPEEDTEST_TAGS", "speedtest-tags", "comma separated speedtest tags to store, * for all", func(r *RawConfig) **string { return &r.Speedtest.Tags }},
	{"SPEEDTEST_BACKEND", "speedtest-backend", "speedtest implementation: cli or native (default \"cli\")", func(r *RawConfig) **string { return &r.Speedtest.Backend }},
}

// Merge overlays every field set in src onto r.
func (r *RawConfig) Merge(src RawConfig) {
	for _, o := range options {
		if v := *o.field(&src); v != nil {
			val := *v
			*o.field(r) = &val
		}
	}
}

// AddFlags registers one flag per option. Flags carry no defaults of their
// own so that unset flags never shadow the environment.
func AddFlags(fs *pflag.FlagSet) {
	for _, o := range options {
		fs.String(o.flag, "", fmt.Sprintf("%s [env %s]", o.usage, o.env))
	}
}

// FromFlags collects the flags that were explicitly set on the command line.
func FromFlags(fs *pflag.FlagSet) RawConfig {
	byFlag := make(map[string]option, len(options))
	for _, o := range options {
		byFlag[o.flag] = o
	}

	var raw RawConfig
	fs.Visit(func(f *pflag.Flag) {
		o, ok := byFlag[f.Name]
		if !ok {
			return
		}
		v := f.Value.String()
		*o.field(&raw) = &v
	})
	return raw
}

// FromEnv reads every option from lookup, typically os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) RawConfig {
	var raw RawConfig
	for _, o := range options {
		if v, ok := lookup(o.env); ok {
			*o.field(&raw) = &v
		}
	}
	return raw
}

// LoadEnvFile loads a dotenv file into the process environment. Variables
// already present in the environment win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// LoadFile reads a YAML file whose keys are the lower-cased environment
// variable names, e.g.
//
//	influxdb_url: http://localhost:8086
//	ping_cron: "0 * * * * *"
//	ping_hosts: [1.1.1.1, 8.8.8.8]
func LoadFile(path string) (RawConfig, error) {
	var raw RawConfig

	b, err := os.ReadFile(path)
	if err != nil {
		return raw, err
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return raw, fmt.Errorf("parse %s: %w", path, err)
	}

	for _, o := range options {
		v, ok := doc[o.key()]
		if !ok || v == nil {
			continue
		}
		s := yamlString(v)
		*o.field(&raw) = &s
	}
	return raw, nil
}

func yamlString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, yamlString(p))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}
