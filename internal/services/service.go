package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"engagement-service/internal/config"
	"engagement-service/internal/engagement"
	"engagement-service/internal/logging"
	"engagement-service/internal/models"
	"engagement-service/internal/sequence"
)

// Service answers engagement queries and dispatches notifications through a worker pool.
type Service struct {
	stores     Stores
	seq        sequence.Sequencer
	policy     config.Policy
	generators map[string]*engagement.FollowUpGenerator
	clock      engagement.Clock
	logger     *logging.Logger
	config     config.Config

	// dealMu serializes read-modify-write cycles on deal follow-up state.
	dealMu sync.Mutex

	tasks     chan models.Task
	pending   atomic.Int64
	ctx       context.Context
	cancel    context.CancelFunc
	wg        *sync.WaitGroup
	notifiers map[string]Notifier
}

// New constructs a Service. One follow-up generator is built per configured business type.
func New(stores Stores, seq sequence.Sequencer, policy config.Policy, clock engagement.Clock, logger *logging.Logger, cfg config.Config) (*Service, error) {
	if stores.Conversations == nil || stores.Deals == nil || stores.Leads == nil || stores.Notifications == nil {
		return nil, errors.New("services: all stores are required")
	}
	if seq == nil {
		seq = sequence.NewMemory()
	}
	if clock == nil {
		clock = engagement.SystemClock{}
	}
	if cfg.Notification.QueueSize <= 0 {
		cfg.Notification.QueueSize = 500
	}
	if cfg.Notification.MaxWorkers <= 0 {
		cfg.Notification.MaxWorkers = 1
	}

	generators := make(map[string]*engagement.FollowUpGenerator, len(policy.Pipelines))
	for bt, p := range policy.Pipelines {
		g, err := engagement.NewFollowUpGenerator(p, policy.Templates)
		if err != nil {
			return nil, err
		}
		generators[bt] = g
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		stores:     stores,
		seq:        seq,
		policy:     policy,
		generators: generators,
		clock:      clock,
		logger:     logger,
		config:     cfg,
		tasks:      make(chan models.Task, cfg.Notification.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
		notifiers:  make(map[string]Notifier),
	}, nil
}

// Now is the current instant according to the injected clock.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// RegisterNotifier binds a delivery channel. Call before Start.
func (s *Service) RegisterNotifier(channel string, n Notifier) {
	s.notifiers[channel] = n
}
