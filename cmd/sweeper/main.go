package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nekogravitycat/studyspace-booking/internal/app"
	"github.com/nekogravitycat/studyspace-booking/internal/booking"
	"github.com/nekogravitycat/studyspace-booking/internal/config"
	"github.com/nekogravitycat/studyspace-booking/internal/db"
	"github.com/nekogravitycat/studyspace-booking/internal/metrics"
	"github.com/nekogravitycat/studyspace-booking/internal/pkg/logging"
)

// sweeper marks ended bookings COMPLETED and purges terminal ones, then exits.
// Intended to run from cron or a scheduled container task.
func main() {
	timeout := flag.Duration("timeout", 0, "overall deadline; defaults to SWEEP_TIMEOUT")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	log := logging.New(cfg.Level, cfg.IsProduction)

	if *timeout <= 0 {
		*timeout = cfg.SweepTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			log.WithField("signal", sig.String()).Warn("received signal, cancelling sweep")
			cancel()
		case <-ctx.Done():
		}
	}()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()

	rdb, err := app.OpenRedis(ctx, cfg.RedisAddr)
	if err != nil {
		// The cache only speeds up reads; invalidation misses expire with the TTL.
		log.WithError(err).Warn("redis unavailable, continuing without cache invalidation")
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	publisher, err := app.OpenPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer publisher.Close()

	svc := app.NewBookingService(app.Config{
		Location:      cfg.Location,
		Logger:        log,
		DBPool:        pool,
		Redis:         rdb,
		RedisCacheTTL: cfg.RedisCacheTTL,
		Publisher:     publisher,
	})

	if err := run(ctx, svc, log); err != nil {
		log.WithError(err).Error("sweep failed")
		// Deferred closers do not run after os.Exit.
		publisher.Close()
		pool.Close()
		os.Exit(1)
	}
}

// run performs one sweep then one best-effort purge.
func run(ctx context.Context, svc booking.Service, log *logrus.Logger) error {
	start := time.Now()

	completed, err := svc.SweepCompleted(ctx, svc.Now())
	if err != nil {
		return err
	}

	purged, err := svc.PurgeTerminal(ctx)
	if err != nil {
		metrics.RecordPurgeFailure()
		log.WithError(err).Warn("purge failed")
	}

	log.WithFields(logrus.Fields{
		"completed":   completed,
		"purged":      purged,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("sweep finished")
	return nil
}
