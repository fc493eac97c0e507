// Command demo simulates a pool of concurrent callers issuing throttled
// cloud API calls through a quotafence Registry, and serves Prometheus
// metrics while doing so. Useful for eyeballing limiter behavior under
// load:
//
//	go run ./cmd/demo -config cmd/demo/config.yaml -workers 8 -duration 30s
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yourusername/quotafence/metrics"
	"github.com/yourusername/quotafence/pkg/quotafence"
)

var resources = []string{
	"compute.instances",
	"storage.buckets",
	"dns.records",
}

func main() {
	configFile := flag.String("config", "cmd/demo/config.yaml", "Path to the quota file")
	workers := flag.Int("workers", 8, "Number of concurrent callers")
	duration := flag.Duration("duration", 15*time.Second, "How long to run the workload")
	metricsAddr := flag.String("metrics-addr", ":9090", "Address for the /metrics endpoint, empty to disable")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := quotafence.LoadQuotaFile(*configFile)
	if err != nil {
		logger.Fatal("failed to load quota file", zap.String("path", *configFile), zap.Error(err))
	}

	registry, err := quotafence.NewRegistry(cfg, quotafence.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to create registry", zap.Error(err))
	}
	stopCleanup := registry.StartBackgroundCleanup(10 * time.Minute)
	defer stopCleanup()

	m := metrics.New(prometheus.DefaultRegisterer)
	limiters := make(map[string]quotafence.Limiter, len(resources))
	for _, resource := range resources {
		limiter, err := registry.For(resource)
		if err != nil {
			logger.Fatal("failed to create limiter", zap.String("resource", resource), zap.Error(err))
		}
		limiters[resource] = metrics.Instrument(resource, limiter, m)
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, registry, logger)
	}

	logger.Info("starting workload",
		zap.Int("workers", *workers),
		zap.Duration("duration", *duration),
		zap.Float64("global_tokens_per_second", registry.Global().RefillRate()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var granted, throttled atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			runWorker(ctx, worker, limiters, &granted, &throttled, logger)
		}(i)
	}
	wg.Wait()

	logger.Info("workload finished",
		zap.Int64("granted", granted.Load()),
		zap.Int64("throttled", throttled.Load()),
		zap.Float64("global_fill_ratio", registry.Global().FillRatio()),
	)
}

func runWorker(ctx context.Context, worker int, limiters map[string]quotafence.Limiter, granted, throttled *atomic.Int64, logger *zap.Logger) {
	for i := 0; ; i++ {
		resource := resources[(worker+i)%len(resources)]
		err := limiters[resource].Acquire(ctx, 1)
		switch {
		case err == nil:
			granted.Add(1)
			// Stand-in for the actual remote call.
			time.Sleep(time.Millisecond)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return
		case errors.Is(err, quotafence.ErrWaitTimeout):
			throttled.Add(1)
			logger.Debug("throttled",
				zap.Int("worker", worker),
				zap.String("resource", resource),
				zap.Error(err),
			)
		default:
			logger.Error("acquire failed",
				zap.Int("worker", worker),
				zap.String("resource", resource),
				zap.Error(err),
			)
			return
		}
	}
}

func serveMetrics(addr string, registry *quotafence.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}
