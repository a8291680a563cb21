package voxa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/harunnryd/voxa/pkg/adapters/tts"
	"github.com/harunnryd/voxa/pkg/audiostore"
	"github.com/harunnryd/voxa/pkg/cache"
	"github.com/harunnryd/voxa/pkg/cost"
	"github.com/harunnryd/voxa/pkg/dispatch"
	"github.com/harunnryd/voxa/pkg/genlog"
	"github.com/harunnryd/voxa/pkg/logging"
	"github.com/harunnryd/voxa/pkg/metrics"
	"github.com/harunnryd/voxa/pkg/observers"
	"github.com/harunnryd/voxa/pkg/redact"
	"github.com/harunnryd/voxa/pkg/resilience"
	"github.com/harunnryd/voxa/pkg/runner"
	"github.com/harunnryd/voxa/pkg/segment"
	"github.com/harunnryd/voxa/pkg/templates"
)

var ErrNoGenerationLog = errors.New("generation log is disabled")

// Engine wires configuration into a ready dispatcher, its cache and stores,
// the observer chain and the cost estimator.
type Engine struct {
	cfg        Config
	log        *slog.Logger
	router     *Router
	provider   tts.Provider
	dispatcher *dispatch.Dispatcher
	audioCache cache.AudioCache
	genlog     genlog.Log
	estimator  *cost.Estimator
	picker     *templates.Picker
	asyncObs   *metrics.AsyncObserver
	latency    *observers.LatencyObserver
	registry   *prometheus.Registry
	closers    []func() error
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	Logger    *slog.Logger
	// Redis overrides the client built from cache.redis.
	Redis redis.UniversalClient
	// Observers receive every event alongside the configured chain.
	Observers []metrics.Observer
	// Templates overrides the stock template picker.
	Templates *templates.Picker
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = logging.InitLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	e := &Engine{cfg: cfg, log: logging.NewComponentLogger(log, "engine")}
	ok := false
	defer func() {
		if !ok {
			_ = e.Close()
		}
	}()

	store, err := audiostore.NewFileStore(cfg.AudioStore.Dir, cfg.AudioStore.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("audio store: %w", err)
	}
	if cfg.AudioStore.RetentionDays > 0 {
		if n, err := store.Purge(days(cfg.AudioStore.RetentionDays)); err != nil {
			e.log.Warn("audio_store_purge_failed", "error", err)
		} else if n > 0 {
			e.log.Info("audio_store_purged", "files", n)
		}
	}

	if e.genlog, err = e.openGenLog(); err != nil {
		return nil, err
	}
	if e.audioCache, err = e.openCache(opts.Redis); err != nil {
		return nil, err
	}

	obs, err := e.buildObservers(log, opts.Observers)
	if err != nil {
		return nil, err
	}

	providers := opts.Providers
	if providers == nil {
		providers = DefaultProviderRegistry()
	}
	e.router, err = providers.BuildRouter(cfg, Deps{Store: store, Logger: log})
	if err != nil {
		return nil, err
	}
	e.provider = e.router
	if e.audioCache != nil {
		e.provider = cache.NewCachingProvider(e.router, e.audioCache,
			cache.WithTTL(time.Duration(cfg.Cache.TTLHours)*time.Hour),
			cache.WithLogger(log),
		)
	}

	var breaker *resilience.CircuitBreaker
	if cfg.Dispatch.Breaker.Threshold > 0 {
		breaker = resilience.NewCircuitBreaker(cfg.Dispatch.Breaker.Threshold,
			time.Duration(cfg.Dispatch.Breaker.CooldownMS)*time.Millisecond,
			resilience.WithTrip(tts.IsTransient))
	}
	var limiter resilience.Limiter
	if tb := resilience.NewTokenBucket(cfg.Dispatch.RatePerSecond, cfg.Dispatch.Burst); tb != nil {
		limiter = tb
	}
	e.dispatcher = dispatch.New(e.provider, dispatch.Options{
		Concurrency:  cfg.Dispatch.Concurrency,
		Timeout:      time.Duration(cfg.Dispatch.TimeoutMS) * time.Millisecond,
		Limiter:      limiter,
		Breaker:      breaker,
		Observer:     obs,
		Segment:      cfg.Segmentation,
		SSMLFallback: cfg.Dispatch.SSMLFallback,
		Logger:       log,
	})

	e.estimator = cost.NewEstimator(cfg.Cost.Pricing)
	e.estimator.Assumptions = cfg.Cost.Assumptions
	e.picker = opts.Templates
	if e.picker == nil {
		e.picker = templates.NewPicker(nil, nil)
	}

	e.log.Info("voxa_init",
		"environment", cfg.Environment,
		"default_provider", cfg.Providers.Default,
		"providers", strings.Join(e.router.Providers(), ","),
		"cache", cfg.Cache.Driver,
		"genlog", cfg.GenLog.Driver,
		"concurrency", cfg.Dispatch.Concurrency,
	)
	ok = true
	return e, nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func (e *Engine) openGenLog() (genlog.Log, error) {
	switch e.cfg.GenLog.Driver {
	case "memory":
		return genlog.NewMemoryLog(), nil
	case "sqlite":
		l, err := genlog.OpenSQLite(e.cfg.GenLog.Path)
		if err != nil {
			return nil, fmt.Errorf("generation log: %w", err)
		}
		e.closers = append(e.closers, l.Close)
		if d := e.cfg.GenLog.RetentionDays; d > 0 {
			n, err := l.PurgeBefore(context.Background(), time.Now().Add(-days(d)))
			if err != nil {
				e.log.Warn("genlog_purge_failed", "error", err)
			} else if n > 0 {
				e.log.Info("genlog_purged", "records", n)
			}
		}
		return l, nil
	}
	return nil, nil
}

func (e *Engine) openCache(client redis.UniversalClient) (cache.AudioCache, error) {
	switch e.cfg.Cache.Driver {
	case "memory":
		return cache.NewMemoryCache(), nil
	case "sqlite":
		c, err := cache.OpenSQLite(e.cfg.Cache.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("audio cache: %w", err)
		}
		e.closers = append(e.closers, c.Close)
		return c, nil
	case "redis":
		rc := e.cfg.Cache.Redis
		owned := client == nil
		if owned {
			client = redis.NewClient(&redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
		}
		c := cache.NewRedisCache(client, cache.WithPrefix(rc.Prefix))
		if owned {
			e.closers = append(e.closers, c.Close)
		}
		return c, nil
	}
	return nil, nil
}

// buildObservers assembles the chain. Latency, generation log and Prometheus
// see every event; log, JSONL and timeline output is sampled except for
// failures and fallbacks.
func (e *Engine) buildObservers(log *slog.Logger, extra []metrics.Observer) (metrics.Observer, error) {
	o := e.cfg.Observability
	e.latency = observers.NewLatencyObserver(log)
	full := []metrics.Observer{e.latency}
	if e.genlog != nil {
		full = append(full, observers.NewGenerationLogObserver(e.genlog, log, observers.WithPricing(e.cfg.Cost.Pricing)))
	}
	if o.Prometheus {
		e.registry = prometheus.NewRegistry()
		e.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		prom, err := metrics.NewPrometheusObserver(e.registry)
		if err != nil {
			return nil, fmt.Errorf("prometheus observer: %w", err)
		}
		full = append(full, prom)
	}
	full = append(full, extra...)

	sampled := []metrics.Observer{observers.NewLoggerObserver(logging.NewComponentLogger(log, "metrics"))}
	if p := strings.TrimSpace(o.JSONLPath); p != "" {
		w, err := openAppend(p)
		if err != nil {
			return nil, fmt.Errorf("jsonl observer: %w", err)
		}
		e.closers = append(e.closers, w.Close)
		sampled = append(sampled, metrics.NewJSONLObserver(w))
	}
	if dir := strings.TrimSpace(o.TimelineDir); dir != "" {
		tl := observers.NewTimelineObserver(dir)
		e.closers = append(e.closers, tl.Close)
		sampled = append(sampled, tl)
	}
	full = append(full, metrics.NewSamplingObserver(observers.NewMultiObserver(sampled...), o.SampleRate,
		metrics.EventSegmentFailed, metrics.EventSSMLFallback, metrics.EventBatchDone))

	e.asyncObs = metrics.NewAsyncObserver(observers.NewMultiObserver(full...), o.AsyncBuffer)
	return e.asyncObs, nil
}

func openAppend(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// GenerateLongAudio segments and synthesizes one response. An empty voice uses
// providers.default_voice.
func (e *Engine) GenerateLongAudio(ctx context.Context, req dispatch.LongAudioRequest) (dispatch.LongAudio, error) {
	if req.Voice == "" {
		req.Voice = e.cfg.Providers.DefaultVoice
	}
	return e.dispatcher.ProcessAndGenerate(ctx, req)
}

// Segment previews segmentation without calling a provider.
func (e *Engine) Segment(text string, mode segment.Mode, cfg *segment.Config) (segment.Result, error) {
	c := e.cfg.Segmentation
	if cfg != nil {
		c = *cfg
	}
	return segment.ProcessLongAudio(text, mode, c)
}

// SegmentationDefaults is the configured segmentation, the base for per-request
// overrides.
func (e *Engine) SegmentationDefaults() segment.Config { return e.cfg.Segmentation }

func (e *Engine) Estimate(profile cost.UsageProfile, monthlyUsers int) (cost.Estimate, error) {
	if monthlyUsers == 0 {
		monthlyUsers = e.cfg.Cost.MonthlyUsers
	}
	return e.estimator.Estimate(profile, monthlyUsers)
}

func (e *Engine) Compare(profile cost.UsageProfile, monthlyUsers int) (cost.Comparison, error) {
	if monthlyUsers == 0 {
		monthlyUsers = e.cfg.Cost.MonthlyUsers
	}
	return e.estimator.Compare(profile, monthlyUsers)
}

func (e *Engine) History(ctx context.Context, start, end time.Time) (cost.HistoricalSummary, error) {
	if e.genlog == nil {
		return cost.HistoricalSummary{}, ErrNoGenerationLog
	}
	return cost.AnalyzeHistoricalCosts(ctx, e.genlog, start, end, e.cfg.Cost.Pricing)
}

func (e *Engine) Profile(ctx context.Context, start, end time.Time) (cost.UsageProfile, error) {
	if e.genlog == nil {
		return cost.UsageProfile{}, ErrNoGenerationLog
	}
	return cost.GenerateUsageProfile(ctx, e.genlog, start, end)
}

func (e *Engine) RenderTemplate(key string, vars map[string]string) (string, error) {
	return e.picker.Render(key, vars)
}

// Flush waits for queued events to reach their observers and stops accepting
// new ones. Call it before reading the generation log from the same process.
func (e *Engine) Flush() {
	e.asyncObs.Close()
}

// Gatherer is nil when Prometheus export is disabled.
func (e *Engine) Gatherer() prometheus.Gatherer {
	if e.registry == nil {
		return nil
	}
	return e.registry
}

func (e *Engine) Config() Config                   { return e.cfg }
func (e *Engine) Dispatcher() *dispatch.Dispatcher { return e.dispatcher }
func (e *Engine) Provider() tts.Provider           { return e.provider }
func (e *Engine) GenerationLog() genlog.Log        { return e.genlog }
func (e *Engine) LatencyStats() observers.LatencyStats {
	return e.latency.Stats()
}

// Health reports whether the audio cache answers.
func (e *Engine) Health(ctx context.Context) error {
	if e.audioCache == nil {
		return nil
	}
	if _, _, err := e.audioCache.Get(ctx, "healthcheck"); err != nil {
		return fmt.Errorf("audio cache: %w", err)
	}
	return nil
}

// Runner returns a lifecycle runner that drains d and then closes the engine.
// Runner wraps a serving period: d drains the outer transport first, then the
// engine closes its stores and flushes observers within shutdown.
func (e *Engine) Runner(d runner.Drainer, shutdown time.Duration) *runner.LifecycleRunner {
	hooks := runner.Hooks{
		OnStart: func(ctx context.Context) error {
			if err := e.Health(ctx); err != nil {
				e.log.Warn("engine_degraded", "error", err)
			}
			e.log.Info("engine_ready", "message", "Voxa Engine Ready", "addr", e.cfg.Server.Addr)
			return nil
		},
		OnStop: func(context.Context) error {
			stats := e.latency.Stats()
			err := e.Close()
			e.log.Info("shutdown", "goroutines", runtime.NumGoroutine(), "batches", stats.Batches, "mean_batch_ms", stats.Mean().Milliseconds())
			return err
		},
	}
	return runner.NewLifecycleRunner(d, hooks, shutdown)
}

// Close flushes observers and releases stores. It is safe to call twice.
func (e *Engine) Close() error {
	if e.asyncObs != nil {
		e.asyncObs.Close()
	}
	var err error
	for i := len(e.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, e.closers[i]())
	}
	e.closers = nil
	return err
}
