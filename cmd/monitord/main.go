// Command monitord runs the feed-monitoring scheduler as a standalone
// process: it wires the monitor core to a persistence backend and a
// messaging transport, then serves its debug/metrics surface over HTTP.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeffreyp/feedmonitor/internal/config"
	"github.com/jeffreyp/feedmonitor/internal/fetch"
	"github.com/jeffreyp/feedmonitor/internal/httpapi"
	"github.com/jeffreyp/feedmonitor/internal/locks"
	"github.com/jeffreyp/feedmonitor/internal/monitor"
	"github.com/jeffreyp/feedmonitor/internal/store"
	"github.com/jeffreyp/feedmonitor/internal/transport"
)

func main() {
	cfg := config.Load()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal("failed to open store:", err)
	}
	defer func() { _ = st.Close() }()

	lister, ok := st.(store.DueFeedLister)
	if !ok {
		log.Fatalf("store backend %T does not support scheduling queries", st)
	}

	rateLimiter := fetch.NewDomainRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurstSize)
	fetcher := fetch.NewHTTPFetcher(rateLimiter)

	// Transport is an external collaborator this scope doesn't implement a
	// production backend for (see DESIGN.md): swap this for a real platform
	// client behind the same interface without touching the monitor core.
	tp := transport.NewMockTransport()

	logger := log.Default()

	queue := monitor.NewSubmissionQueue()
	stats := monitor.NewStatsAggregator(cfg.Tier1SummaryPeriod, logger)
	states := monitor.NewFeedStateTable(cfg.MinimalInterval, queue, stats, logger)

	fanout := &monitor.DeliveryFanout{
		Transport:        tp,
		Unsub:            locks.NewUnsubLockBucket(),
		Blocked:          locks.NewBlockedCounter(),
		BlockedTolerance: cfg.BlockedTolerance,
		SendTimeout:      cfg.SendTimeout,
		Hooks:            monitor.DefaultHooks(),
		Logger:           logger,
	}

	detector := &monitor.UpdateDetector{
		Store:   st,
		Fetcher: fetcher,
		Flood:   locks.NewFloodLimiter(),
		Fanout:  fanout,
		Stats:   stats,
		Hooks:   monitor.DefaultHooks(),
		Config:  cfg,
		Logger:  logger,
	}

	worker := &monitor.MonitorWorker{
		Store:    st,
		Detector: detector,
		States:   states,
		Queue:    queue,
		Stats:    stats,
		Timeout:  cfg.MonitorTimeout,
		Logger:   logger,
	}

	dispatcher := monitor.NewDispatcher(queue, worker, logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	driver := &monitor.PeriodicDriver{
		Scheduler: store.NewScheduler(lister),
		Store:     st,
		States:    states,
		Queue:     queue,
		Stats:     stats,
		Interval:  cfg.TickInterval,
		Logger:    logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go driver.Run(ctx)

	srv := httpapi.NewServer(st, states, queue, stats)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server:", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
}

func openStore(cfg *config.Config) (store.FeedStore, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		return store.OpenSQLStore(cfg.DatabasePath)
	case "datastore":
		return store.OpenDatastoreStore(context.Background(), cfg.ProjectID)
	default:
		return store.NewMemStore(), nil
	}
}
