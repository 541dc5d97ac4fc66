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

	"LiveChart/internal/calculator"
	"LiveChart/internal/chart"
	"LiveChart/internal/collector"
	"LiveChart/internal/config"
	"LiveChart/internal/logging"
	"LiveChart/internal/metrics"
	"LiveChart/internal/model"
	"LiveChart/internal/recorder"
	"LiveChart/internal/scheduler"
	"LiveChart/internal/session"
	"LiveChart/internal/web"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("livechart stopped with error", zap.Error(err))
	}
	logger.Info("livechart stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("livechart starting", zap.String("symbol", cfg.Symbol), zap.String("provider", cfg.DataSource.Provider))

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	period, err := model.ParsePeriod(cfg.Period)
	if err != nil {
		return err
	}
	interval, err := cfg.IntervalDuration()
	if err != nil {
		return err
	}
	mode, err := calculator.ParseStdDevMode(cfg.StdDevMode)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg)

	// Init fetcher chain: provider -> retry -> cache
	var fetcher collector.Fetcher
	switch cfg.DataSource.Provider {
	case "barsapi":
		fetcher = collector.NewBarsAPIFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	case "mock":
		fetcher = &collector.MockFetcher{}
	default:
		fetcher = collector.NewYahooFetcher(cfg.Proxy)
	}
	logger.Info("data source", zap.String("name", fetcher.Name()))
	fetcher = collector.NewRetryFetcher(fetcher, cfg.FetchRetries, logger)
	fetcher, err = collector.NewCachedFetcher(fetcher, cfg.CacheTTL())
	if err != nil {
		return err
	}
	if cf, ok := fetcher.(*collector.CachedFetcher); ok {
		defer cf.Close()
	}
	col := collector.NewCollector(fetcher, period, interval, loc, logger)

	// Init recorder
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.RecorderEnabled() {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	// Restore last selected symbol
	store, err := session.NewStore(cfg.Session.StateFile, cfg.Symbol, logger)
	if err != nil {
		return fmt.Errorf("init session store: %w", err)
	}

	hub := web.NewHub(m, logger)
	chartOpts := chart.DefaultOptions()
	chartOpts.Timezone = cfg.DisplayTimezone
	ctrl := scheduler.NewController(col, hub, rec, m, store, scheduler.Options{
		Symbol:       store.Symbol(),
		Interval:     cfg.RefreshInterval(),
		FetchTimeout: cfg.FetchTimeout(),
		Params: calculator.Params{
			Window:     cfg.MAWindow,
			K:          cfg.BandK,
			Mode:       mode,
			LongWindow: cfg.LongMAWindow,
		},
		Chart: chartOpts,
	}, logger)
	hub.SetSymbolSetter(ctrl)

	mux := http.NewServeMux()
	web.RegisterRoutes(mux, hub, ctrl, m, logger)
	srv := &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := ctrl.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		ctrl.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
