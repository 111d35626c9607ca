// Package schedule runs the recurring data and analysis jobs on cron
// specs: post-close price append, periodic news fetch, the nightly
// analysis batch and weekly correlation regeneration.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"stock-predictor/internal/config"
	"stock-predictor/internal/marketdata"
	"stock-predictor/internal/pipeline"
	"stock-predictor/internal/store"
)

// Job names double as the sync_status keys each job stamps on success.
const (
	JobPrices       = "prices"
	JobNews         = "news"
	JobAnalysis     = "analysis"
	JobCorrelations = "correlations"
)

// backfillDays bounds the initial price fetch for a stock with no history.
const backfillDays = 365

type job struct {
	name    string
	spec    string
	run     func(ctx context.Context) error
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
	lastRun time.Time
	lastErr string
}

// JobStatus reports one job's registration and last outcome.
type JobStatus struct {
	Name    string
	Spec    string
	Running bool
	LastRun time.Time
	NextRun time.Time
	LastErr string
}

// Scheduler owns the cron loop. Jobs for different concerns may overlap;
// a second firing of the same job while the first still runs is skipped.
type Scheduler struct {
	cron   *cron.Cron
	store  store.DataStore
	prices marketdata.PriceSource
	news   marketdata.NewsSource
	orch   *pipeline.Orchestrator
	cfg    *config.Config
	logger zerolog.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	started bool
}

// New builds a scheduler with the four standard jobs registered on the
// configured specs. The price and news sources may be nil; their jobs
// then fail at run time with a clear error instead of at construction.
func New(dataStore store.DataStore, prices marketdata.PriceSource, news marketdata.NewsSource, orch *pipeline.Orchestrator, cfg *config.Config, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		store:  dataStore,
		prices: prices,
		news:   news,
		orch:   orch,
		cfg:    cfg,
		logger: logger.With().Str("component", "schedule").Logger(),
		jobs:   make(map[string]*job),
	}

	specs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{JobPrices, cfg.Schedule.PriceAppendSpec, s.syncPrices},
		{JobNews, cfg.Schedule.NewsFetchSpec, s.syncNews},
		{JobAnalysis, cfg.Schedule.DailyAnalysis, s.runAnalysis},
		{JobCorrelations, cfg.Schedule.WeeklyCorrelate, s.refreshCorrelations},
	}
	for _, reg := range specs {
		if err := s.register(reg.name, reg.spec, reg.run); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Scheduler) register(name, spec string, run func(ctx context.Context) error) error {
	j := &job{name: name, spec: spec, run: run}

	entryID, err := s.cron.AddFunc(spec, func() {
		_ = s.execute(context.Background(), j)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, name, err)
	}
	j.entryID = entryID

	s.mu.Lock()
	s.jobs[name] = j
	s.order = append(s.order, name)
	s.mu.Unlock()

	return nil
}

// Start begins firing jobs on their specs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already running")
	}
	s.cron.Start()
	s.started = true
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// Trigger runs a job immediately in the caller's goroutine and returns
// its error. An already-running job is not doubled up.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.execute(ctx, j)
}

// Statuses returns every job in registration order.
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[cron.EntryID]time.Time, len(s.jobs))
	for _, entry := range s.cron.Entries() {
		next[entry.ID] = entry.Next
	}

	statuses := make([]JobStatus, 0, len(s.order))
	for _, name := range s.order {
		j := s.jobs[name]
		j.mu.Lock()
		statuses = append(statuses, JobStatus{
			Name:    j.name,
			Spec:    j.spec,
			Running: j.running,
			LastRun: j.lastRun,
			NextRun: next[j.entryID],
			LastErr: j.lastErr,
		})
		j.mu.Unlock()
	}
	return statuses
}

func (s *Scheduler) execute(ctx context.Context, j *job) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		s.logger.Warn().Str("job", j.name).Msg("Previous run still active, skipping")
		return fmt.Errorf("job %s already running", j.name)
	}
	j.running = true
	j.mu.Unlock()

	start := time.Now()
	s.logger.Info().Str("job", j.name).Msg("Job started")

	err := j.run(ctx)

	j.mu.Lock()
	j.running = false
	j.lastRun = time.Now().UTC()
	j.lastErr = ""
	if err != nil {
		j.lastErr = err.Error()
	}
	j.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("job", j.name).Dur("elapsed", time.Since(start)).Msg("Job failed")
		return err
	}
	s.logger.Info().Str("job", j.name).Dur("elapsed", time.Since(start)).Msg("Job finished")
	return nil
}
