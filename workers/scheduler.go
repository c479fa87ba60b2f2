package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/netwatcherio/speedflux/config"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/syncmap"
)

// DefaultIdle is how long Run sleeps when no job is scheduled.
const DefaultIdle = 60 * time.Second

// Scheduler triggers each registered service on its own cron schedule.
// Different services may run at the same time; a slow run of one service
// is not prevented from overlapping its next trigger.
type Scheduler struct {
	cron    *cron.Cron
	metrics *Metrics
	jobs    syncmap.Map

	ctx    context.Context
	cancel context.CancelFunc

	// Grace is how long Run waits for in-flight runs after shutdown
	// before cancelling them.
	Grace time.Duration
	Idle  time.Duration
}

func NewScheduler(m *Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(config.CronParser),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		Grace:   30 * time.Second,
		Idle:    DefaultIdle,
	}
}

// Register adds svc under the cron schedule. Names must be unique.
func (s *Scheduler) Register(svc Service, schedule string) error {
	name := svc.Name()
	if _, loaded := s.jobs.Load(name); loaded {
		return fmt.Errorf("service %s is already registered", name)
	}

	id, err := s.cron.AddFunc(schedule, func() {
		run(s.ctx, svc, s.metrics)
	})
	if err != nil {
		return fmt.Errorf("service %s: invalid cron expression %q: %w", name, schedule, err)
	}
	s.jobs.Store(name, id)

	log.Infof("Registered %s with schedule %q", name, schedule)
	return nil
}

// Services lists the registered service names.
func (s *Scheduler) Services() []string {
	var names []string
	s.jobs.Range(func(key, _ interface{}) bool {
		names = append(names, key.(string))
		return true
	})
	return names
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts triggering and waits for in-flight runs until ctx is done,
// then cancels them.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn("Scheduler: cancelling runs still in progress")
		s.cancel()
		<-done.Done()
	}
	s.cancel()
}

// TimeToNextJob reports how long until the earliest scheduled trigger.
// It returns false before Start or when nothing is registered.
func (s *Scheduler) TimeToNextJob() (time.Duration, bool) {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	if next.IsZero() {
		return 0, false
	}
	d := time.Until(next)
	if d < 0 {
		d = 0
	}
	return d, true
}

// Run starts the scheduler and idles until ctx is cancelled. Jobs run on
// their own goroutines; this loop only sleeps until the next trigger.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()

	for {
		wait, ok := s.TimeToNextJob()
		if !ok {
			wait = s.Idle
		}
		log.Debugf("Scheduler: next run in %v", wait.Round(time.Millisecond))

		// wake up slightly after the trigger so Entries reflects the next one
		timer := time.NewTimer(wait + 10*time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			stopCtx, cancel := context.WithTimeout(context.Background(), s.Grace)
			s.Stop(stopCtx)
			cancel()
			return nil
		case <-timer.C:
		}
	}
}

// cronLogger routes cron's own messages through logrus.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).Debugf("cron: %s", msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.WithFields(fields(keysAndValues)).WithError(err).Errorf("cron: %s", msg)
}

func fields(kv []interface{}) log.Fields {
	f := log.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
