package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string { return &s }

func baseRaw() RawConfig {
	return RawConfig{
		InfluxDBURL:   str("http://localhost:8086"),
		InfluxDBToken: str("token"),
	}
}

func TestValidatePingActivation(t *testing.T) {
	tests := []struct {
		name    string
		raw     RawPingConfig
		want    *PingConfig
		wantErr error
	}{
		{
			name: "disabled",
			raw:  RawPingConfig{},
		},
		{
			name:    "cron only",
			raw:     RawPingConfig{Cron: str("0 * * * * *")},
			wantErr: ErrMissingRequiredField,
		},
		{
			name:    "hosts only",
			raw:     RawPingConfig{Hosts: str("1.1.1.1")},
			wantErr: ErrMissingRequiredField,
		},
		{
			name: "defaults",
			raw:  RawPingConfig{Cron: str("0 * * * * *"), Hosts: str("a.com,b.com")},
			want: &PingConfig{
				Cron:    "0 * * * * *",
				Hosts:   []string{"a.com", "b.com"},
				Timeout: time.Second,
				Bytes:   32,
				Count:   5,
			},
		},
		{
			name: "explicit values",
			raw: RawPingConfig{
				Cron:    str("*/5 * * * *"),
				Hosts:   str("8.8.8.8, [2606:4700::1111]"),
				Timeout: str("2500"),
				Bytes:   str("64"),
				Count:   str("3"),
				Gateway: str("true"),
			},
			want: &PingConfig{
				Cron:    "*/5 * * * *",
				Hosts:   []string{"8.8.8.8", "2606:4700::1111"},
				Timeout: 2500 * time.Millisecond,
				Bytes:   64,
				Count:   3,
				Gateway: true,
			},
		},
		{
			name:    "invalid host",
			raw:     RawPingConfig{Cron: str("* * * * *"), Hosts: str("a.com,bad host")},
			wantErr: ErrInvalidHost,
		},
		{
			name:    "empty host segment",
			raw:     RawPingConfig{Cron: str("* * * * *"), Hosts: str("a.com,,b.com")},
			wantErr: ErrInvalidHost,
		},
		{
			name:    "bad count",
			raw:     RawPingConfig{Cron: str("* * * * *"), Hosts: str("a.com"), Count: str("five")},
			wantErr: ErrInvalidValue,
		},
		{
			name:    "zero timeout",
			raw:     RawPingConfig{Cron: str("* * * * *"), Hosts: str("a.com"), Timeout: str("0")},
			wantErr: ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePing(tt.raw)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseHosts(t *testing.T) {
	hosts, err := ParseHosts("example.com,10.0.0.1,::1,my_host.local.,xn--bcher-kva.example")
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "10.0.0.1", "::1", "my_host.local.", "xn--bcher-kva.example"}, hosts)

	for _, bad := range []string{"", "-leading.com", "trailing-.com", "a..b", "[::1", "[nope]", "exa mple.com", "http://a.com"} {
		_, err := ParseHosts(bad)
		assert.ErrorIs(t, err, ErrInvalidHost, bad)
	}
}

func TestParseHostsInternational(t *testing.T) {
	hosts, err := ParseHosts("bücher.de, MÜNCHEN.example")
	require.NoError(t, err)
	assert.Equal(t, []string{"xn--bcher-kva.de", "xn--mnchen-3ya.example"}, hosts)

	_, err = ParseHosts("bü cher.de")
	assert.ErrorIs(t, err, ErrInvalidHost)
}

func TestValidateCron(t *testing.T) {
	for _, expr := range []string{"*/5 * * * *", "0 */5 * * * *", "@hourly", "@every 30s"} {
		cfg, err := ValidatePing(RawPingConfig{Cron: str(expr), Hosts: str("a.com")})
		require.NoError(t, err, expr)
		assert.Equal(t, expr, cfg.Cron)
	}

	_, err := ValidatePing(RawPingConfig{Cron: str("every now and then"), Hosts: str("a.com")})
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = ValidateSpeedtest(RawSpeedtestConfig{Cron: str("61 * * * *"), Fields: str("isp"), Tags: str("isp")})
	assert.ErrorIs(t, err, ErrInvalidValue)

	raw := baseRaw()
	raw.Ping = RawPingConfig{Cron: str("whenever"), Hosts: str("a.com"), Count: str("zero")}
	_, err = Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Contains(t, err.Error(), "PING_CRON")
	assert.Contains(t, err.Error(), "PING_COUNT")
}

func TestValidateSpeedtestActivation(t *testing.T) {
	server := uint64(1234)

	tests := []struct {
		name    string
		raw     RawSpeedtestConfig
		want    *SpeedtestConfig
		wantErr error
	}{
		{
			name: "disabled",
			raw:  RawSpeedtestConfig{},
		},
		{
			name:    "server without activation",
			raw:     RawSpeedtestConfig{Server: str("1234")},
			wantErr: ErrDependentField,
		},
		{
			name:    "missing tags",
			raw:     RawSpeedtestConfig{Cron: str("0 0 * * * *"), Fields: str("download_bandwidth")},
			wantErr: ErrMissingRequiredField,
		},
		{
			name:    "missing cron",
			raw:     RawSpeedtestConfig{Fields: str("download_bandwidth"), Tags: str("isp")},
			wantErr: ErrMissingRequiredField,
		},
		{
			name: "full",
			raw: RawSpeedtestConfig{
				Cron:   str("0 0 * * * *"),
				Server: str("1234"),
				Fields: str("download_bandwidth, upload_bandwidth,not_a_field"),
				Tags:   str("isp"),
			},
			want: &SpeedtestConfig{
				Cron:    "0 0 * * * *",
				Server:  &server,
				Fields:  []string{"download_bandwidth", "upload_bandwidth", "not_a_field"},
				Tags:    []string{"isp"},
				Backend: BackendCLI,
			},
		},
		{
			name:    "bad server",
			raw:     RawSpeedtestConfig{Cron: str("@hourly"), Server: str("abc"), Fields: str("x"), Tags: str("y")},
			wantErr: ErrInvalidValue,
		},
		{
			name:    "bad backend",
			raw:     RawSpeedtestConfig{Cron: str("@hourly"), Fields: str("x"), Tags: str("y"), Backend: str("fast")},
			wantErr: ErrInvalidValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateSpeedtest(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	raw := baseRaw()
	raw.LogLevel = str("debug")
	raw.Namespace = str("home")
	raw.Ping = RawPingConfig{Cron: str("0 * * * * *"), Hosts: str("1.1.1.1")}

	cfg, err := Validate(raw)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8086", cfg.InfluxDBURL.String())
	assert.Equal(t, DefaultOrg, cfg.InfluxDBOrg)
	assert.Equal(t, DefaultBucket, cfg.InfluxDBBucket)
	assert.True(t, cfg.InfluxDBVerifySSL)
	assert.Equal(t, log.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "home", cfg.Namespace)
	assert.NotNil(t, cfg.Ping)
	assert.Nil(t, cfg.Speedtest)
	assert.True(t, cfg.Enabled())
}

func TestValidateURLScheme(t *testing.T) {
	for _, u := range []string{"ftp://influx:8086", "localhost:8086", "unix:///var/run/influx.sock"} {
		raw := baseRaw()
		raw.InfluxDBURL = str(u)
		_, err := Validate(raw)
		assert.ErrorIs(t, err, ErrInvalidURLScheme, u)
	}

	raw := baseRaw()
	raw.InfluxDBURL = str("https://influx.example.com")
	_, err := Validate(raw)
	assert.NoError(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	raw := RawConfig{
		LogLevel:  str("trace"),
		Ping:      RawPingConfig{Cron: str("* * * * *")},
		Speedtest: RawSpeedtestConfig{Server: str("1")},
	}

	_, err := Validate(raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
	assert.ErrorIs(t, err, ErrDependentField)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Contains(t, err.Error(), `PING_HOSTS is required for "PING_" parameters`)
}

func TestLayering(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "speedflux.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
influxdb_url: http://file:8086
influxdb_bucket: from-file
ping_cron: "0 * * * * *"
ping_hosts:
  - 1.1.1.1
  - 8.8.8.8
ping_count: 3
`), 0o644))

	raw, err := LoadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "1.1.1.1,8.8.8.8", *raw.Ping.Hosts)
	assert.Equal(t, "3", *raw.Ping.Count)

	env := map[string]string{
		"INFLUXDB_URL":   "http://env:8086",
		"INFLUXDB_TOKEN": "secret",
	}
	raw.Merge(FromEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--influxdb-url", "https://flag:8086", "--ping-count=7"}))
	raw.Merge(FromFlags(fs))

	cfg, err := Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "https://flag:8086", cfg.InfluxDBURL.String())
	assert.Equal(t, "secret", cfg.InfluxDBToken)
	assert.Equal(t, "from-file", cfg.InfluxDBBucket)
	assert.Equal(t, 7, cfg.Ping.Count)
	assert.Equal(t, []string{"1.1.1.1", "8.8.8.8"}, cfg.Ping.Hosts)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("SPEEDFLUX_TEST_VALUE=from-dotenv\n"), 0o644))

	t.Setenv("SPEEDFLUX_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("SPEEDFLUX_TEST_VALUE"))

	require.NoError(t, LoadEnvFile(file))
	assert.Equal(t, "from-dotenv", os.Getenv("SPEEDFLUX_TEST_VALUE"))

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}
