package influx

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

var ErrNoFields = errors.New("point has no fields")

// Point is one measurement record. It is built once through PointBuilder
// and never modified afterwards.
type Point struct {
	name   string
	tags   map[string]string
	fields map[string]interface{}
	time   time.Time
}

func (p *Point) Name() string { return p.name }

func (p *Point) Time() time.Time { return p.time }

// Tag returns the value of tag k.
func (p *Point) Tag(k string) (string, bool) {
	v, ok := p.tags[k]
	return v, ok
}

// Field returns the value of field k.
func (p *Point) Field(k string) (interface{}, bool) {
	v, ok := p.fields[k]
	return v, ok
}

// Tags returns a copy of the tag set.
func (p *Point) Tags() map[string]string {
	out := make(map[string]string, len(p.tags))
	for k, v := range p.tags {
		out[k] = v
	}
	return out
}

// Fields returns a copy of the field set.
func (p *Point) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(p.fields))
	for k, v := range p.fields {
		out[k] = v
	}
	return out
}

func (p *Point) String() string {
	keys := make([]string, 0, len(p.fields))
	for k := range p.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("%s %v fields=%v", p.name, p.tags, keys)
}

func (p *Point) toWrite() *write.Point {
	return write.NewPoint(p.name, p.tags, p.fields, p.time)
}

type PointBuilder struct {
	name   string
	tags   map[string]string
	fields map[string]interface{}
	time   time.Time
}

func NewPointBuilder(name string) *PointBuilder {
	return &PointBuilder{
		name:   name,
		tags:   make(map[string]string),
		fields: make(map[string]interface{}),
	}
}

func (b *PointBuilder) Tag(k, v string) *PointBuilder {
	b.tags[k] = v
	return b
}

// Field accepts string, bool, signed/unsigned integers and floats.
func (b *PointBuilder) Field(k string, v interface{}) *PointBuilder {
	b.fields[k] = v
	return b
}

func (b *PointBuilder) Time(t time.Time) *PointBuilder {
	b.time = t
	return b
}

// Build fails when no field was added; InfluxDB rejects such lines. A zero
// time means the point is stamped when it is built.
func (b *PointBuilder) Build() (*Point, error) {
	if len(b.fields) == 0 {
		return nil, fmt.Errorf("%s: %w", b.name, ErrNoFields)
	}

	p := &Point{
		name:   b.name,
		tags:   make(map[string]string, len(b.tags)),
		fields: make(map[string]interface{}, len(b.fields)),
		time:   b.time,
	}
	for k, v := range b.tags {
		p.tags[k] = v
	}
	for k, v := range b.fields {
		p.fields[k] = v
	}
	if p.time.IsZero() {
		p.time = time.Now()
	}
	return p, nil
}
