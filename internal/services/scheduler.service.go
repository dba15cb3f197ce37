package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"hostpulse/internal/config"
	"hostpulse/internal/models"

	"go.uber.org/zap"
)

// ErrSchedulerRunning is returned by Start on a running scheduler.
var ErrSchedulerRunning = errors.New("scheduler already running")

type resourceResult struct {
	snapshot models.SystemSnapshot
	charts   models.ChartHistory
}

type connectionResult struct {
	set models.ConnectionSet
}

type configUpdate struct {
	cfg     config.Config
	applied chan struct{}
}

type ackRequest struct {
	id    string
	reply chan bool
}

// Scheduler drives the three poll families (resource sampling, connection
// enumeration, alert evaluation) on independent tickers.
//
// A single owner goroutine selects on the tickers and applies every result
// to State. Blocking work runs in worker goroutines that only hand results
// back; a family never has two cycles in flight, a tick arriving while its
// previous cycle runs is skipped.
type Scheduler struct {
	sampler    *ResourceSampler
	enumerator *ConnectionEnumerator
	engine     *AlertEngine
	detector   *AnomalyDetector
	state      *State
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	cfg     config.Config
	cancel  context.CancelFunc
	done    chan struct{}
	updates chan configUpdate
	acks    chan ackRequest
}

func NewScheduler(cfg config.Config, sampler *ResourceSampler, enumerator *ConnectionEnumerator,
	engine *AlertEngine, detector *AnomalyDetector, logger *zap.Logger) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scheduler{
		sampler:    sampler,
		enumerator: enumerator,
		engine:     engine,
		detector:   detector,
		state:      NewState(),
		logger:     logger.Named("scheduler"),
		now:        time.Now,
		cfg:        cfg,
		updates:    make(chan configUpdate),
		acks:       make(chan ackRequest),
	}, nil
}

// State returns the published state.
func (s *Scheduler) State() *State {
	return s.state
}

// Config returns the active configuration.
func (s *Scheduler) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start launches the owner goroutine. The first resource and connection
// cycles start immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrSchedulerRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state.setRunning(true)
	go s.run(ctx, s.cfg, s.done)
	s.logger.Info("monitoring started",
		zap.Duration("resource", s.cfg.Intervals.Resource),
		zap.Duration("connections", s.cfg.Intervals.Connections),
		zap.Duration("alerts", s.cfg.Intervals.Alerts))
	return nil
}

// Stop cancels all tickers and waits for the owner goroutine. Results of
// cycles still in flight are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.state.setRunning(false)
	s.logger.Info("monitoring stopped")
}

// UpdateConfig validates cfg and makes it active. Changed intervals restart
// the affected ticker; rule changes apply from the next evaluation. An
// invalid config is rejected and the current one stays active.
// process_cache, server and log settings are read once at start-up; changes
// to them are stored but only logged until the process restarts.
func (s *Scheduler) UpdateConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		s.logger.Warn("config update rejected", zap.Error(err))
		return err
	}
	s.mu.Lock()
	running, done := s.cancel != nil, s.done
	if !running {
		prev := s.cfg
		s.cfg = cfg
		s.mu.Unlock()
		s.applyConfig(prev, cfg)
		return nil
	}
	s.mu.Unlock()

	update := configUpdate{cfg: cfg, applied: make(chan struct{})}
	select {
	case s.updates <- update:
		<-update.applied
	case <-done:
		// stopped meanwhile, keep it for the next Start
		s.mu.Lock()
		prev := s.cfg
		s.cfg = cfg
		s.mu.Unlock()
		s.applyConfig(prev, cfg)
	}
	return nil
}

// Acknowledge marks an alert as seen and republishes the alert list.
func (s *Scheduler) Acknowledge(id string) bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return s.acknowledge(id)
	}
	req := ackRequest{id: id, reply: make(chan bool, 1)}
	select {
	case s.acks <- req:
		return <-req.reply
	case <-done:
		return s.acknowledge(id)
	}
}

func (s *Scheduler) acknowledge(id string) bool {
	ok := s.engine.Acknowledge(id, s.now())
	if ok {
		s.state.publishAlerts(s.engine.Alerts(), nil)
	}
	return ok
}

func (s *Scheduler) run(ctx context.Context, cfg config.Config, done chan struct{}) {
	defer close(done)

	resourceTicker := time.NewTicker(cfg.Intervals.Resource)
	connectionTicker := time.NewTicker(cfg.Intervals.Connections)
	alertTicker := time.NewTicker(cfg.Intervals.Alerts)
	defer resourceTicker.Stop()
	defer connectionTicker.Stop()
	defer alertTicker.Stop()

	// one slot per family, so a worker never blocks on hand-off
	resources := make(chan resourceResult, 1)
	connections := make(chan connectionResult, 1)
	var resourceBusy, connectionBusy bool

	startResource := func() {
		if resourceBusy {
			s.logger.Debug("resource cycle still running, tick skipped")
			return
		}
		resourceBusy = true
		go func() {
			snap := s.sampler.Sample()
			resources <- resourceResult{snapshot: snap, charts: s.sampler.Histories()}
		}()
	}
	startConnections := func() {
		if connectionBusy {
			s.logger.Debug("connection cycle still running, tick skipped")
			return
		}
		connectionBusy = true
		go func() {
			connections <- connectionResult{set: s.enumerator.Enumerate(ctx)}
		}()
	}

	startResource()
	startConnections()

	for {
		select {
		case <-ctx.Done():
			return

		case <-resourceTicker.C:
			startResource()

		case <-connectionTicker.C:
			startConnections()

		case <-alertTicker.C:
			s.evaluateRules()

		case r := <-resources:
			resourceBusy = false
			if ctx.Err() != nil {
				return
			}
			s.applyResource(r)

		case r := <-connections:
			connectionBusy = false
			if ctx.Err() != nil {
				return
			}
			stats := s.enumerator.Stats(s.state.previousStats(), r.set)
			s.state.publishConnections(r.set, stats)

		case update := <-s.updates:
			next := update.cfg
			s.mu.Lock()
			prev := s.cfg
			s.cfg = next
			s.mu.Unlock()
			if next.Intervals.Resource != prev.Intervals.Resource {
				resourceTicker.Reset(next.Intervals.Resource)
			}
			if next.Intervals.Connections != prev.Intervals.Connections {
				connectionTicker.Reset(next.Intervals.Connections)
			}
			if next.Intervals.Alerts != prev.Intervals.Alerts {
				alertTicker.Reset(next.Intervals.Alerts)
			}
			s.applyConfig(prev, next)
			close(update.applied)

		case req := <-s.acks:
			req.reply <- s.acknowledge(req.id)
		}
	}
}

func (s *Scheduler) applyResource(r resourceResult) {
	snap := r.snapshot
	var fresh []models.Alert
	if alert, ok := s.detector.Observe(models.BandwidthSample{
		Timestamp: snap.Timestamp,
		BytesIn:   snap.NetworkDownloadBps,
		BytesOut:  snap.NetworkUploadBps,
	}); ok {
		fresh = append(fresh, alert)
		s.engine.Record(alert)
	}
	s.state.publishSnapshot(snap, r.charts, s.detector.Samples())
	if len(fresh) > 0 {
		s.state.publishAlerts(s.engine.Alerts(), fresh)
	}
}

func (s *Scheduler) evaluateRules() {
	fired := s.engine.Evaluate(s.now(), s.state.reading())
	if len(fired) > 0 {
		s.state.publishAlerts(s.engine.Alerts(), fired)
	}
}

// applyConfig pushes the non-ticker parts of a config change to the components.
func (s *Scheduler) applyConfig(prev, next config.Config) {
	s.engine.SetRules(next.Alerts.Rules)
	if next.History.ChartCapacity != prev.History.ChartCapacity {
		s.sampler.ResizeHistory(next.History.ChartCapacity)
	}
	if next.History.AnomalyCapacity != prev.History.AnomalyCapacity {
		s.detector.Resize(next.History.AnomalyCapacity)
	}
	if next.Disk.Path != prev.Disk.Path {
		s.sampler.SetDiskPath(next.Disk.Path)
	}
	if keys := config.RestartRequired(prev, next); len(keys) > 0 {
		s.logger.Info("config changes take effect after restart", zap.Strings("keys", keys))
	}
	s.logger.Info("config applied", zap.Int("rules", len(next.Alerts.Rules)))
}
