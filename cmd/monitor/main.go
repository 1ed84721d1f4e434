// cmd/monitor/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/modbus-monitor/internal/config"
	"github.com/tamzrod/modbus-monitor/internal/logger"
	"github.com/tamzrod/modbus-monitor/internal/monitor"
)

const svcName = "modbus_monitor"

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: monitor <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	logr, err := logger.New(os.Stdout, cfg.Monitor.LogLevel)
	if err != nil {
		log.Fatalf("logger setup failed: %v", err)
	}

	// --------------------
	// Build monitor service
	// --------------------

	m, err := monitor.Build(cfg.Monitor, logr)
	if err != nil {
		log.Fatalf("monitor build failed: %v", err)
	}

	var svc monitor.Service = m
	svc = monitor.LoggingMiddleware(svc, logr)
	svc = monitor.MetricsMiddleware(
		svc,
		kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: svcName,
			Subsystem: "api",
			Name:      "request_count",
			Help:      "Number of service method calls.",
		}, []string{"method"}),
		kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
			Namespace: svcName,
			Subsystem: "api",
			Name:      "request_latency_microseconds",
			Help:      "Total duration of service method calls in microseconds.",
		}, []string{"method"}),
		kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: svcName,
			Subsystem: "poll",
			Name:      "cycles_total",
			Help:      "Number of completed poll cycles.",
		}, nil),
		kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: svcName,
			Subsystem: "poll",
			Name:      "group_failures_total",
			Help:      "Number of per-group poll failures.",
		}, nil),
	)

	// --------------------
	// Run until signalled
	// --------------------

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if addr := cfg.Monitor.Metrics.Addr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: promhttp.Handler()}
		g.Go(func() error {
			logr.Info(fmt.Sprintf("metrics listening on %s", addr))
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return svc.Run(ctx, printReadings)
	})
	g.Go(func() error {
		<-ctx.Done()
		svc.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logr.Error(fmt.Sprintf("monitor terminated: %s", err))
		os.Exit(1)
	}
	logr.Info("monitor shut down")
}

// printReadings is the default cycle handler: one line per group reading.
func printReadings(res monitor.CycleResult) error {
	fmt.Printf("=== cycle %s (%d readings, %d failures) ===\n",
		res.At.Format("2006-01-02 15:04:05.000"), len(res.Readings), len(res.Failures))

	for _, r := range res.Readings {
		var vals []string
		if r.Kind.Bits() {
			for _, b := range r.Bits {
				vals = append(vals, fmt.Sprintf("%t", b))
			}
		} else {
			for _, v := range r.Registers {
				vals = append(vals, fmt.Sprintf("%d", v))
			}
		}
		fmt.Printf("  %s: [%s]\n", r.Name, strings.Join(vals, ", "))
	}
	return nil
}
