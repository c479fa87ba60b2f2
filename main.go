package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netwatcherio/speedflux/config"
	"github.com/netwatcherio/speedflux/influx"
	"github.com/netwatcherio/speedflux/probes"
	"github.com/netwatcherio/speedflux/workers"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const healthTimeout = 10 * time.Second

var (
	configFile string
	envFile    string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speedflux",
		Short: "Collect ping and speedtest measurements into InfluxDB",
		Long: "speedflux runs ping and speedtest on cron schedules and writes\n" +
			"the results as points to an InfluxDB v2 bucket.",
		Version:       VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := runAgent(cmd)
			if err != nil {
				log.Error(err)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "YAML config file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment")
	config.AddFlags(cmd.Flags())
	return cmd
}

func setupLogging(level log.Level) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
}

func runAgent(cmd *cobra.Command) error {
	setupLogging(log.InfoLevel)
	log.Info(banner())

	if err := loadEnvFile(envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}

	raw, err := collectConfig(configFile, func() config.RawConfig {
		return config.FromFlags(cmd.Flags())
	})
	if err != nil {
		return err
	}

	cfg, err := config.Validate(raw)
	if err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	setupLogging(cfg.LogLevel)
	host := probes.Hostname()
	log.Debugf("Running on %s", host)

	client := influx.NewClient(clientConfig(cfg))
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := checkHealth(ctx, client); err != nil {
		return err
	}

	var metrics *workers.Metrics
	if cfg.MetricsAddr != "" {
		metrics = workers.NewMetrics(host)
	}

	scheduler := workers.NewScheduler(metrics)
	if err := registerServices(scheduler, client, cfg); err != nil {
		return err
	}
	if !cfg.Enabled() {
		log.Warn("Neither ping nor speedtest is configured, nothing will be measured")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if metrics != nil {
		srv := metrics.Server(cfg.MetricsAddr)
		g.Go(func() error {
			log.Infof("Serving metrics on %s/metrics", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	log.Info("Shutting down")
	return err
}

func clientConfig(cfg *config.Config) influx.ClientConfig {
	cc := influx.NewClientConfig(cfg.InfluxDBURL.String(), cfg.InfluxDBToken, cfg.InfluxDBOrg, cfg.InfluxDBBucket)
	cc.VerifySSL = cfg.InfluxDBVerifySSL
	cc.Namespace = cfg.Namespace
	return cc
}

func checkHealth(ctx context.Context, sink influx.Sink) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	health, err := sink.Health(ctx)
	if err != nil {
		return err
	}
	if !health.Pass() {
		return fmt.Errorf("%w: health check reported %q: %s", influx.ErrConnect, health.Status, health.Message)
	}
	log.Infof("Connected to %s %s", health.Name, health.Version)
	return nil
}

func registerServices(s *workers.Scheduler, sink influx.Sink, cfg *config.Config) error {
	if cfg.Ping != nil {
		pinger, err := probes.NewPinger(cfg.Platform)
		if err != nil {
			return err
		}
		log.Infof("Ping: using %s ping", pinger.Name())

		if cfg.Ping.Gateway {
			addGateway(cfg.Ping)
		}
		if err := s.Register(workers.NewPingService(sink, pinger, cfg.Ping), cfg.Ping.Cron); err != nil {
			return err
		}
	}

	if cfg.Speedtest != nil {
		tester, err := probes.NewSpeedtester(cfg.Speedtest.Backend)
		if err != nil {
			return err
		}
		if err := s.Register(workers.NewSpeedtestService(sink, tester, cfg.Speedtest), cfg.Speedtest.Cron); err != nil {
			return err
		}
	}
	return nil
}

func addGateway(ping *config.PingConfig) {
	gw, err := probes.DiscoverGateway()
	if err != nil {
		log.Warnf("Ping: %v", err)
		return
	}
	for _, h := range ping.Hosts {
		if h == gw {
			return
		}
	}
	log.Infof("Ping: adding default gateway %s", gw)
	ping.Hosts = append(ping.Hosts, gw)
}
