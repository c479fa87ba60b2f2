package workers

import (
	"context"
	"fmt"

	"github.com/netwatcherio/speedflux/config"
	"github.com/netwatcherio/speedflux/influx"
	"github.com/netwatcherio/speedflux/probes"
	log "github.com/sirupsen/logrus"
)

const pingMeasurement = "ping"

// PingService pings every configured host in turn and writes one point per
// host in a single batch.
type PingService struct {
	sink   influx.Sink
	pinger probes.Pinger
	config *config.PingConfig
	name   string
}

func NewPingService(sink influx.Sink, pinger probes.Pinger, cfg *config.PingConfig) *PingService {
	return &PingService{
		sink:   sink,
		pinger: pinger,
		config: cfg,
		name:   pingMeasurement,
	}
}

func (s *PingService) Name() string {
	return "ping/" + s.name
}

func (s *PingService) Execute(ctx context.Context) error {
	points := make([]*influx.Point, 0, len(s.config.Hosts))

	// sequential on purpose, concurrent pings skew each other's timings
	for _, host := range s.config.Hosts {
		log.Debugf("%s: pinging %s", s.Name(), host)

		res, err := s.pinger.Ping(ctx, host, s.config.Bytes, s.config.Count, s.config.Timeout)
		if err != nil {
			return fmt.Errorf("ping %s: %w", host, err)
		}
		if res == (probes.PingResult{}) {
			log.Debugf("%s: no summary found in output for %s", s.Name(), host)
		}

		p, err := pingPoint(s.name, host, res)
		if err != nil {
			return err
		}
		points = append(points, p)
	}

	return s.sink.Write(ctx, points...)
}

func pingPoint(name, host string, r probes.PingResult) (*influx.Point, error) {
	return influx.NewPointBuilder(name).
		Tag("host", host).
		Field("packet_loss", r.PacketLoss).
		Field("rtt_min", r.RttMin).
		Field("rtt_avg", r.RttAvg).
		Field("rtt_max", r.RttMax).
		Build()
}
