package workers

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// Service is one scheduled measurement. Execute performs exactly one
// write to the sink when it succeeds.
type Service interface {
	Name() string
	Execute(ctx context.Context) error
}

// run executes s once, logging and counting the outcome. Failures never
// propagate past this point.
func run(ctx context.Context, s Service, m *Metrics) {
	name := s.Name()
	start := time.Now()
	log.Infof("%s: starting run", name)

	err := s.Execute(ctx)
	elapsed := time.Since(start)
	m.observe(name, elapsed, err)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warnf("%s: run cancelled after %v", name, elapsed)
			return
		}
		log.Errorf("%s: run failed after %v: %v", name, elapsed, err)
		return
	}
	log.Infof("%s: run finished in %v", name, elapsed)
}
