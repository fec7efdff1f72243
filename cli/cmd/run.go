package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/tandem/adapter"
	redisadapter "github.com/pithecene-io/tandem/adapter/redis"
	"github.com/pithecene-io/tandem/adapter/webhook"
	"github.com/pithecene-io/tandem/audit"
	"github.com/pithecene-io/tandem/cli/config"
	"github.com/pithecene-io/tandem/engine"
	"github.com/pithecene-io/tandem/ipc"
	"github.com/pithecene-io/tandem/log"
	"github.com/pithecene-io/tandem/metrics"
	"github.com/pithecene-io/tandem/monitor"
	"github.com/pithecene-io/tandem/registry"
	"github.com/pithecene-io/tandem/types"
)

// Exit codes for tandem run.
const (
	exitSuccess      = 0
	exitStreamError  = 1
	exitSetupError   = 2
	exitStorageError = 3
)

// RunCommand returns the run command.
// This is the only command that hosts a live coordination session.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a coordination session over a channel event stream (stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to tandem.yaml config file",
			},
			&cli.StringFlag{
				Name:  "session",
				Usage: "Session ID (default: generated, or config session.id)",
			},
			&cli.StringFlag{
				Name:  "user-agent",
				Usage: "UI user agent for session metadata",
			},
			&cli.StringSliceFlag{
				Name:  "channel",
				Usage: "Available input channel (repeatable; default: all)",
			},
			// Audit trail flags
			&cli.StringFlag{
				Name:  "audit-backend",
				Usage: "Audit trail backend: fs, s3, or none",
			},
			&cli.StringFlag{
				Name:  "audit-path",
				Usage: "Audit trail path (fs: directory, s3: bucket/prefix)",
			},
			&cli.StringFlag{
				Name:  "audit-region",
				Usage: "AWS region for S3 backend (optional, uses default chain)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress session summary output",
			},
		},
		Action: runAction,
	}
}

// auditChoice holds the merged audit storage configuration.
type auditChoice struct {
	backend     string // "fs", "s3", or "none"
	path        string
	region      string
	endpoint    string
	s3PathStyle bool
}

func runAction(c *cli.Context) error {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("config: %v", err), exitSetupError)
		}
		cfg = loaded
	}

	session := types.SessionMeta{
		SessionID: firstOf(c.String("session"), cfg.Session.ID, uuid.NewString()),
		UserAgent: firstOf(c.String("user-agent"), cfg.Session.UserAgent),
		StartedAt: time.Now(),
	}
	logger := log.NewLogger(&session)
	defer func() { _ = logger.Sync() }()

	engCfg, err := buildEngineConfig(c, cfg, session)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid engine config: %v", err), exitSetupError)
	}

	trail := auditChoice{
		backend:     firstOf(c.String("audit-backend"), cfg.Audit.Backend),
		path:        firstOf(c.String("audit-path"), cfg.Audit.Path),
		region:      firstOf(c.String("audit-region"), cfg.Audit.Region),
		endpoint:    cfg.Audit.Endpoint,
		s3PathStyle: cfg.Audit.S3PathStyle,
	}
	sink, err := buildAuditSink(c.Context, trail, session.SessionID)
	if err != nil {
		return cli.Exit(fmt.Sprintf("audit sink: %v", err), exitStorageError)
	}

	adapters, err := buildAdapters(cfg.Adapters)
	if err != nil {
		return cli.Exit(fmt.Sprintf("adapter: %v", err), exitSetupError)
	}
	fanout := adapter.NewFanout(adapters, logger)
	defer func() { _ = fanout.Close() }()

	collector := metrics.NewCollector(session.SessionID)
	eng := engine.New(engCfg,
		engine.WithLogger(logger),
		engine.WithTelemetry(collector),
		engine.WithAuditSink(sink),
		engine.WithHealthListener(healthEventPublisher(session.SessionID, fanout)),
	)

	scheduler := engine.NewScheduler(eng)
	scheduler.Start()

	handler := &engineHandler{eng: eng, logger: logger}
	pump := ipc.NewPump(os.Stdin, handler, logger)

	pumpErr := make(chan error, 1)
	go func() { pumpErr <- pump.Run() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var streamErr error
	select {
	case streamErr = <-pumpErr:
	case sig := <-sigCh:
		logger.Info("signal received", map[string]any{"signal": sig.String()})
	}

	scheduler.Stop()

	if err := sink.Close(); err != nil {
		logger.Error("audit close", map[string]any{"error": err.Error()})
		return cli.Exit(fmt.Sprintf("audit trail flush failed: %v", err), exitStorageError)
	}

	if !c.Bool("quiet") {
		printSessionSummary(eng, collector, handler.endReason, time.Since(session.StartedAt))
	}

	if streamErr != nil {
		return cli.Exit(fmt.Sprintf("stream error: %v", streamErr), exitStreamError)
	}
	return cli.Exit("", exitSuccess)
}

// buildEngineConfig merges CLI flags over file config into engine.Config.
func buildEngineConfig(c *cli.Context, cfg *config.Config, session types.SessionMeta) (engine.Config, error) {
	available, err := cfg.Engine.AvailableChannels()
	if err != nil {
		return engine.Config{}, err
	}
	if names := c.StringSlice("channel"); len(names) > 0 {
		available = available[:0]
		for _, name := range names {
			ch := types.Channel(name)
			if !ch.Valid() {
				return engine.Config{}, fmt.Errorf("unknown channel %q", name)
			}
			available = append(available, ch)
		}
	}

	level, err := cfg.Engine.ConformanceLevel()
	if err != nil {
		return engine.Config{}, err
	}

	return engine.Config{
		Session:           session,
		Available:         available,
		MaxTotalLatency:   cfg.Engine.MaxTotalLatency.Duration,
		TickInterval:      cfg.Engine.TickInterval.Duration,
		FusionBudget:      cfg.Engine.FusionBudget.Duration,
		WCAGLevel:         level,
		MaxActiveChannels: cfg.Engine.MaxActiveChannels,
		IntentThreshold:   cfg.Engine.IntentThreshold,
		AnnouncementTTL:   cfg.Engine.AnnouncementTTL.Duration,
	}, nil
}

// buildAuditSink creates an audit sink from the merged configuration.
// An empty or "none" backend discards the trail.
func buildAuditSink(ctx context.Context, choice auditChoice, sessionID string) (audit.Sink, error) {
	switch choice.backend {
	case "", "none":
		return audit.NopSink{}, nil
	case "fs":
		if choice.path == "" {
			return nil, errors.New("fs backend requires a path")
		}
		return audit.NewFSSink(choice.path, sessionID)
	case "s3":
		if choice.path == "" {
			return nil, errors.New("s3 backend requires a bucket/prefix path")
		}
		bucket, prefix := audit.ParseS3Path(choice.path)
		return audit.NewS3Sink(ctx, audit.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       choice.region,
			Endpoint:     choice.endpoint,
			UsePathStyle: choice.s3PathStyle,
		}, sessionID)
	default:
		return nil, fmt.Errorf("unknown audit backend: %s (must be fs, s3, or none)", choice.backend)
	}
}

// healthEventPublisher adapts engine health notifications onto the
// adapter fanout. A notification that keeps the previous aggregate
// health is a degradation pin and publishes as degradation_activated;
// everything else publishes as health_changed.
func healthEventPublisher(sessionID string, fanout *adapter.Fanout) func(types.HealthStatus, types.GracefulDegradation) {
	var mu sync.Mutex
	last := types.HealthHealthy
	return func(health types.HealthStatus, d types.GracefulDegradation) {
		mu.Lock()
		pinned := health == last
		last = health
		mu.Unlock()

		if pinned {
			fanout.Publish(adapter.NewDegradationActivatedEvent(sessionID, health, d, time.Now()))
			return
		}
		fanout.Publish(adapter.NewHealthChangedEvent(sessionID, health, d, time.Now()))
	}
}

// buildAdapters creates notification adapters from config.
func buildAdapters(configs []config.AdapterConfig) ([]adapter.Adapter, error) {
	adapters := make([]adapter.Adapter, 0, len(configs))
	for _, ac := range configs {
		retries := -1
		if ac.Retries != nil {
			retries = *ac.Retries
		}

		switch ac.Type {
		case "redis":
			a, err := redisadapter.New(redisadapter.Config{
				URL:     ac.URL,
				Channel: ac.Channel,
				Timeout: ac.Timeout.Duration,
				Retries: defaultRetries(retries, redisadapter.DefaultRetries),
			})
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, a)
		case "webhook":
			a, err := webhook.New(webhook.Config{
				URL:     ac.URL,
				Headers: ac.Headers,
				Timeout: ac.Timeout.Duration,
				Retries: defaultRetries(retries, webhook.DefaultRetries),
			})
			if err != nil {
				return nil, err
			}
			adapters = append(adapters, a)
		default:
			return nil, fmt.Errorf("unknown adapter type: %s (must be redis or webhook)", ac.Type)
		}
	}
	return adapters, nil
}

func defaultRetries(configured, fallback int) int {
	if configured < 0 {
		return fallback
	}
	return configured
}

// engineHandler adapts the frame stream onto the engine command surface.
type engineHandler struct {
	eng       *engine.Engine
	logger    *log.Logger
	endReason string
}

// HandleInput reports an input arrival, activating the channel on first
// use.
func (h *engineHandler) HandleInput(ch types.Channel, payload string, confidence float64, ts time.Time, latency time.Duration) error {
	err := h.eng.ReportInput(ch, payload, confidence, ts, latency)
	if errors.Is(err, registry.ErrChannelInactive) {
		if err := h.eng.ActivateChannel(ch); err != nil {
			return err
		}
		return h.eng.ReportInput(ch, payload, confidence, ts, latency)
	}
	return err
}

// HandleError reports a channel error into the cascade.
func (h *engineHandler) HandleError(se types.SystemError) error {
	_, err := h.eng.ReportError(se)
	return err
}

// HandleSessionEnd records the terminal frame reason.
func (h *engineHandler) HandleSessionEnd(reason string) error {
	h.endReason = reason
	h.logger.Info("session end", map[string]any{"reason": reason})
	return nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func printSessionSummary(eng *engine.Engine, collector *metrics.Collector, endReason string, elapsed time.Duration) {
	health := eng.Health()
	perf := eng.Metrics()

	fmt.Printf("\nsession=%s, health=%s, degradation=%s, duration=%s\n",
		eng.Session().SessionID,
		health.Status,
		health.Degradation.Level,
		elapsed.Round(time.Millisecond),
	)

	fmt.Printf("\n=== Session Summary ===\n")
	fmt.Printf("Session:           %s\n", eng.Session().SessionID)
	if endReason != "" {
		fmt.Printf("End Reason:        %s\n", endReason)
	}
	fmt.Printf("Health:            %s\n", health.Status)
	fmt.Printf("Degradation:       %s\n", health.Degradation.Level)
	fmt.Printf("Open Conflicts:    %d\n", health.OpenConflicts)
	fmt.Printf("Unresolved Errors: %d\n", health.UnresolvedErrors)
	fmt.Printf("Conflicts Total:   %d\n", len(eng.Conflicts()))
	fmt.Printf("Syncs Total:       %d\n", len(eng.Syncs()))
	fmt.Printf("Errors Total:      %d\n", len(eng.ErrorHistory()))
	fmt.Printf("Total Latency:     %s\n", perf.TotalLatency)
	fmt.Printf("SLA Met:           %t\n", eng.ValidateSLA())

	if latency := collector.Stat(monitor.MetricTotalLatency); latency.Count > 0 {
		fmt.Printf("\n=== Telemetry ===\n")
		fmt.Printf("Ticks Observed:    %d\n", latency.Count)
		fmt.Printf("Latency Mean:      %.0fms\n", latency.Mean())
		fmt.Printf("Latency Max:       %.0fms\n", latency.Max)
		fmt.Printf("Syncs Measured:    %d\n", collector.Stat(monitor.MetricSyncDuration).Count)
		fmt.Printf("Fusions Measured:  %d\n", collector.Stat(monitor.MetricFusionDuration).Count)
	}

	if len(health.Degradation.DisabledFeatures) > 0 {
		fmt.Printf("\n=== Degradation ===\n")
		for _, feature := range health.Degradation.DisabledFeatures {
			fmt.Printf("  - disabled: %s\n", feature)
		}
		for _, note := range health.Degradation.Notifications {
			fmt.Printf("  - %s\n", note)
		}
	}
}
