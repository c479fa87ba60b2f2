package workers

import (
	"context"
	"fmt"

	"github.com/netwatcherio/speedflux/config"
	"github.com/netwatcherio/speedflux/influx"
	"github.com/netwatcherio/speedflux/probes"
	log "github.com/sirupsen/logrus"
)

const (
	speedtestMeasurement = "speedtest"
	wildcard             = "*"
)

// SpeedtestService runs one speedtest and writes the requested subset of
// its fields and tags as a single point.
type SpeedtestService struct {
	sink   influx.Sink
	tester probes.Speedtester
	config *config.SpeedtestConfig
	name   string
}

func NewSpeedtestService(sink influx.Sink, tester probes.Speedtester, cfg *config.SpeedtestConfig) *SpeedtestService {
	return &SpeedtestService{
		sink:   sink,
		tester: tester,
		config: cfg,
		name:   speedtestMeasurement,
	}
}

func (s *SpeedtestService) Name() string {
	return "speedtest/" + s.name
}

func (s *SpeedtestService) Execute(ctx context.Context) error {
	res, err := s.tester.Speedtest(ctx, s.config.Server)
	if err != nil {
		if de, ok := probes.IsDeserializeError(err); ok {
			log.Errorf("%s: could not decode output: %s", s.Name(), de.Payload)
		}
		return err
	}
	log.Infof("%s: %s", s.Name(), res.Summary())

	p, err := s.point(res)
	if err != nil {
		return fmt.Errorf("build point: %w", err)
	}
	return s.sink.Write(ctx, p)
}

func (s *SpeedtestService) point(res *probes.SpeedtestResult) (*influx.Point, error) {
	b := influx.NewPointBuilder(s.name)

	for _, f := range selectValues(s.Name(), "field", res.Fields(), s.config.Fields) {
		b.Field(f.Name, f.Value)
	}
	for _, t := range selectValues(s.Name(), "tag", res.TagValues(), s.config.Tags) {
		b.Tag(t.Name, t.Value.(string))
	}
	return b.Build()
}

// selectValues picks the requested names in request order. A "*" entry
// expands to everything available; unknown names are skipped with a
// warning.
func selectValues(service, kind string, available probes.Values, requested []string) probes.Values {
	var out probes.Values
	seen := make(map[string]bool)

	add := func(v probes.Value) {
		if !seen[v.Name] {
			seen[v.Name] = true
			out = append(out, v)
		}
	}

	for _, name := range requested {
		if name == wildcard {
			for _, v := range available {
				add(v)
			}
			continue
		}
		v, ok := available.Lookup(name)
		if !ok {
			log.Warnf("%s: unknown %s %q, skipping", service, kind, name)
			continue
		}
		add(probes.Value{Name: name, Value: v})
	}
	return out
}
