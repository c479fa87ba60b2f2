package influx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointBuilder(t *testing.T) {
	b := NewPointBuilder("speedtest").
		Tag("isp", "ACME").
		Field("download_bandwidth", 12345.0).
		Field("server_id", int64(42))

	p, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "speedtest", p.Name())
	assert.False(t, p.Time().IsZero())

	v, ok := p.Tag("isp")
	assert.True(t, ok)
	assert.Equal(t, "ACME", v)

	f, ok := p.Field("server_id")
	assert.True(t, ok)
	assert.Equal(t, int64(42), f)

	// the builder can keep going without touching the built point
	b.Field("upload_bandwidth", 1.0)
	_, ok = p.Field("upload_bandwidth")
	assert.False(t, ok)

	tags := p.Tags()
	tags["isp"] = "changed"
	v, _ = p.Tag("isp")
	assert.Equal(t, "ACME", v)
}

func TestPointWithoutFields(t *testing.T) {
	_, err := NewPointBuilder("empty").Tag("host", "a").Build()
	assert.ErrorIs(t, err, ErrNoFields)
}

func TestPointTime(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	p, err := NewPointBuilder("ping").Field("rtt_min", 1.0).Time(ts).Build()
	require.NoError(t, err)
	assert.Equal(t, ts, p.Time())
	assert.Equal(t, ts, p.toWrite().Time())
}
