package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinelstack/sentinel-agent/internal/agent"
	"github.com/sentinelstack/sentinel-agent/internal/analyzer"
	"github.com/sentinelstack/sentinel-agent/internal/api"
	"github.com/sentinelstack/sentinel-agent/internal/config"
	"github.com/sentinelstack/sentinel-agent/internal/metrics"
	"github.com/sentinelstack/sentinel-agent/internal/repo"
	"github.com/sentinelstack/sentinel-agent/internal/service"
	"github.com/sentinelstack/sentinel-agent/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting sentinel-agent", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	pack, err := analyzer.LoadPatternPack(cfg.Patterns.Path)
	if err != nil {
		logger.Error("failed to load pattern pack", slog.String("path", cfg.Patterns.Path), slog.Any("error", err))
		os.Exit(1)
	}

	logAnalyzer, err := analyzer.NewLogAnalyzer(pack)
	if err != nil {
		logger.Error("failed to build log analyzer", slog.Any("error", err))
		os.Exit(1)
	}
	alarmAnalyzer := analyzer.NewAlarmAnalyzer(pack)

	reallocator := agent.NewReallocator(logger, agent.ReallocatorConfig{
		RetryLimit:              cfg.Orchestrator.RetryLimit,
		MinAcceptableConfidence: cfg.Orchestrator.MinAcceptableConfidence,
		SmoothingFactor:         cfg.Orchestrator.SmoothingFactor,
	})

	selector := agent.NewSelector(logger, reallocator)
	selector.Register(logAnalyzer)
	selector.Register(alarmAnalyzer)

	summarizer := agent.NewSummarizer(logger, agent.SummarizerConfig{
		SignificanceThreshold: cfg.Orchestrator.SignificanceThreshold,
		MaxRemediations:       cfg.Orchestrator.MaxRemediations,
	}, reallocator, selector)

	planner := agent.NewPlanner(logger, selector, reallocator, summarizer, agent.PlannerConfig{
		TaskTimeout:        cfg.Orchestrator.TaskTimeout,
		MaxConcurrentTasks: cfg.Orchestrator.MaxConcurrentTasks,
	})

	var opts []service.Option
	if cfg.Monitor.BaseURL != "" {
		monitor := repo.NewMonitorClient(cfg.Monitor.BaseURL, cfg.Monitor.LogsPath, cfg.Monitor.AlarmsPath, cfg.Monitor.Timeout)
		opts = append(opts, service.WithMonitor(monitor, cfg.Monitor.Window))
	}
	if cfg.Cache.Enabled {
		opts = append(opts, service.WithReportCache(cfg.Cache.ReportTTL))
	}

	agentService := service.NewAgentService(logger, planner, opts...)

	handlers := api.NewHandlers(agentService, logger)
	server, err := api.NewServer(cfg.Server, handlers, logger)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("sentinel-agent stopped")
}
