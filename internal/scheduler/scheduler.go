// Package scheduler owns the recurring jobs: interval polling cycles and
// cron shopping-list generation, plus the on-demand variants behind the
// HTTP surface.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pantrywatch/pantrywatch/internal/config"
	"github.com/pantrywatch/pantrywatch/internal/domain/models"
	"github.com/pantrywatch/pantrywatch/internal/metrics"
	"github.com/pantrywatch/pantrywatch/internal/poller"
)

// consumptionWindow is how far back the forecaster looks in the log.
const consumptionWindow = 30 * 24 * time.Hour

// Job names used in the last-run registry.
const (
	JobPoll = "poll_cycle"
	JobList = "list_generation"
)

// InventorySource supplies the read-only inbound data of the engine.
type InventorySource interface {
	Items(ctx context.Context) ([]models.InventoryItem, error)
	Consumption(ctx context.Context, since time.Time) ([]models.ConsumptionLogEntry, error)
}

// PollRunner executes one polling cycle.
type PollRunner interface {
	RunCycle(ctx context.Context) (poller.CycleSummary, error)
}

// EventDetector derives price and stock events for one item.
type EventDetector interface {
	DetectEvents(item models.InventoryItem, platforms []string) []models.Event
}

// TriggerSource evaluates the restock set.
type TriggerSource interface {
	Triggers(items []models.InventoryItem, logs map[string][]models.ConsumptionLogEntry) ([]models.RestockTrigger, []models.Event)
}

// ListBuilder generates a shopping list from triggers.
type ListBuilder interface {
	Generate(ctx context.Context, triggers []models.RestockTrigger) (models.ShoppingList, error)
}

// Dispatcher routes events to the notification sink.
type Dispatcher interface {
	Dispatch(ctx context.Context, cycleID string, events []models.Event)
}

// Scheduler manages scheduled tasks and their on-demand counterparts.
type Scheduler struct {
	cron       *cron.Cron
	cfg        config.MonitorConfig
	source     InventorySource
	poller     PollRunner
	detector   EventDetector
	forecaster TriggerSource
	generator  ListBuilder
	router     Dispatcher
	platforms  func() []string
	metrics    *metrics.Registry
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	lastRun map[string]time.Time
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(
	cfg config.MonitorConfig,
	source InventorySource,
	pollRunner PollRunner,
	detector EventDetector,
	forecaster TriggerSource,
	generator ListBuilder,
	router Dispatcher,
	platforms func() []string,
	m *metrics.Registry,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:       cron.New(),
		cfg:        cfg,
		source:     source,
		poller:     pollRunner,
		detector:   detector,
		forecaster: forecaster,
		generator:  generator,
		router:     router,
		platforms:  platforms,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
		lastRun:    make(map[string]time.Time),
	}
}

// WithClock overrides the scheduler clock. Intended for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Start registers the recurring jobs and starts the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler",
		zap.Int("poll_interval_hours", s.cfg.PollIntervalHours),
		zap.String("list_cron", s.cfg.ListCronSchedule))

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %dh", s.cfg.PollIntervalHours), s.pollJob); err != nil {
		s.logger.Error("failed to schedule polling cycle", zap.Error(err))
	}
	if _, err := s.cron.AddFunc(s.cfg.ListCronSchedule, s.listJob); err != nil {
		s.logger.Error("failed to schedule list generation", zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

// LastRun returns when a named job last completed.
func (s *Scheduler) LastRun(job string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastRun[job]
	return t, ok
}

func (s *Scheduler) markRun(job string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[job] = s.now()
}

func (s *Scheduler) pollJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CycleTimeout())
	defer cancel()

	if _, err := s.RunPollNow(ctx); err != nil {
		s.logger.Error("polling cycle failed", zap.Error(err))
	}
}

func (s *Scheduler) listJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CycleTimeout())
	defer cancel()

	if _, err := s.GenerateListNow(ctx); err != nil {
		s.logger.Error("list generation failed", zap.Error(err))
	}
}

// RunPollNow executes one polling cycle, detects events from the refreshed
// ledger and routes them. Also serves the ad-hoc poll trigger.
func (s *Scheduler) RunPollNow(ctx context.Context) (poller.CycleSummary, error) {
	summary, err := s.poller.RunCycle(ctx)
	if err != nil {
		return summary, err
	}
	defer s.markRun(JobPoll)

	items, err := s.source.Items(ctx)
	if err != nil {
		// Observations are already committed; event detection just skips
		// this cycle.
		s.logger.Warn("skipping event detection, inventory unavailable", zap.Error(err))
		return summary, nil
	}

	cycleID := uuid.NewString()
	platforms := s.platforms()

	var events []models.Event
	for _, item := range items {
		if !item.Active {
			continue
		}
		events = append(events, s.detector.DetectEvents(item, platforms)...)
	}

	if len(events) > 0 {
		s.router.Dispatch(ctx, cycleID, events)
	}

	s.logger.Info("poll cycle events routed",
		zap.String("cycle_id", cycleID),
		zap.Int("events", len(events)))

	return summary, nil
}

// GenerateListNow evaluates restock triggers and builds a draft shopping
// list. Also serves the ad-hoc generation trigger.
func (s *Scheduler) GenerateListNow(ctx context.Context) (models.ShoppingList, error) {
	items, err := s.source.Items(ctx)
	if err != nil {
		return models.ShoppingList{}, fmt.Errorf("load inventory snapshot: %w", err)
	}

	entries, err := s.source.Consumption(ctx, s.now().Add(-consumptionWindow))
	if err != nil {
		return models.ShoppingList{}, fmt.Errorf("load consumption log: %w", err)
	}

	logs := make(map[string][]models.ConsumptionLogEntry)
	for _, entry := range entries {
		logs[entry.ItemID] = append(logs[entry.ItemID], entry)
	}

	triggers, events := s.forecaster.Triggers(items, logs)
	if len(events) > 0 {
		s.router.Dispatch(ctx, uuid.NewString(), events)
	}

	list, err := s.generator.Generate(ctx, triggers)
	if err != nil {
		return list, err
	}
	if s.metrics != nil {
		s.metrics.ListsGenerated.Inc()
	}
	s.markRun(JobList)

	return list, nil
}
