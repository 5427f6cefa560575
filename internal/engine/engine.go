package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"aemo-price-feed/internal/config"
	"aemo-price-feed/internal/metrics"
	"aemo-price-feed/internal/nem"
	"aemo-price-feed/internal/nemweb"
	"aemo-price-feed/internal/report"
	"aemo-price-feed/internal/scheduler"
	"aemo-price-feed/internal/store"
)

// Engine orchestrates ingestion: one pipeline per region, each pipeline
// polling the three product feeds on their own cadence and folding results
// into the store.
type Engine struct {
	cfg     *config.Config
	source  nemweb.Source
	decoder *report.Decoder
	store   *store.Store
	metrics *metrics.Set
	logger  zerolog.Logger

	mu        sync.Mutex
	pipelines map[nem.Region]*pipeline
	running   bool
	runCtx    context.Context
	wg        sync.WaitGroup

	subMu       sync.RWMutex
	subscribers map[uuid.UUID]*Subscription
}

type pipeline struct {
	region nem.Region
	cancel context.CancelFunc
}

// New constructs the ingestion engine.
func New(cfg *config.Config, source nemweb.Source, st *store.Store, set *metrics.Set, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:         cfg,
		source:      source,
		decoder:     report.NewDecoder(logger),
		store:       st,
		metrics:     set,
		logger:      logger.With().Str("component", "engine").Logger(),
		pipelines:   make(map[nem.Region]*pipeline),
		subscribers: make(map[uuid.UUID]*Subscription),
	}
}

// Run starts a pipeline per configured region and blocks until ctx is
// cancelled and the streams have drained, or the shutdown grace elapses.
func (e *Engine) Run(ctx context.Context) error {
	regions, err := e.cfg.ParsedRegions()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine already running")
	}
	e.running = true
	e.runCtx = runCtx
	for _, region := range regions {
		e.startPipelineLocked(region)
	}
	e.mu.Unlock()

	e.logger.Info().Int("regions", len(regions)).Msg("engine started")

	<-ctx.Done()
	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	grace := e.cfg.Engine.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	select {
	case <-done:
	case <-time.After(grace):
		e.logger.Warn().Dur("grace", grace).Msg("shutdown grace elapsed before streams drained")
	}

	e.mu.Lock()
	e.running = false
	for range e.pipelines {
		e.metrics.ActivePipelines.Dec()
	}
	e.pipelines = make(map[nem.Region]*pipeline)
	e.mu.Unlock()

	e.closeSubscribers()
	e.logger.Info().Msg("engine stopped")
	return ctx.Err()
}

// startPipelineLocked spawns the three product streams for a region.
// Caller holds e.mu and the engine is running.
func (e *Engine) startPipelineLocked(region nem.Region) {
	ctx, cancel := context.WithCancel(e.runCtx)
	e.pipelines[region] = &pipeline{region: region, cancel: cancel}
	e.metrics.ActivePipelines.Inc()

	for _, kind := range nem.Products() {
		stream := &streamLoop{
			engine: e,
			region: region,
			kind:   kind,
			logger: e.logger.With().
				Str("region", string(region)).
				Str("product", string(kind)).
				Logger(),
		}
		sched := scheduler.New(scheduler.Options{
			Interval: e.cfg.For(kind).Interval,
			Jitter:   e.cfg.Engine.Jitter,
			Name:     string(region) + "/" + string(kind),
		}, e.logger)

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			_ = sched.Run(ctx, stream.tick)
		}()
	}
}

// AddRegion starts polling a region at runtime.
func (e *Engine) AddRegion(code string) error {
	region, err := nem.ParseRegion(code)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return fmt.Errorf("engine not running")
	}
	if _, exists := e.pipelines[region]; exists {
		return fmt.Errorf("region %s already active", region)
	}
	e.startPipelineLocked(region)
	e.logger.Info().Str("region", string(region)).Msg("region added")
	return nil
}

// RemoveRegion stops polling a region and drops its stored state.
func (e *Engine) RemoveRegion(code string) error {
	region, err := nem.ParseRegion(code)
	if err != nil {
		return err
	}

	e.mu.Lock()
	p, exists := e.pipelines[region]
	if exists {
		delete(e.pipelines, region)
	}
	e.mu.Unlock()
	if !exists {
		return fmt.Errorf("region %s not active", region)
	}

	p.cancel()
	e.store.Remove(region)
	e.metrics.ActivePipelines.Dec()
	e.logger.Info().Str("region", string(region)).Msg("region removed")
	return nil
}

// ActiveRegions lists the regions currently being polled in stable order.
func (e *Engine) ActiveRegions() []nem.Region {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]nem.Region, 0, len(e.pipelines))
	for region := range e.pipelines {
		out = append(out, region)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
