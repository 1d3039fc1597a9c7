package supervisor

import (
	"context"
	"sync"
	"time"

	sm "station_monitor"
	"station_monitor/internal/logger"
	"station_monitor/internal/opc"
)

// StationSource is the configuration store view the supervisor reconciles
// against.
type StationSource interface {
	ListActive(ctx context.Context) ([]sm.StationConfig, error)
}

const defaultReconcileInterval = 30 * time.Second

// Supervisor keeps the set of live station connections consistent with
// configuration: one supervised connection per active station, stopped
// when the station is deactivated or removed.
type Supervisor struct {
	stations StationSource
	registry *opc.Registry
	dial     opc.Dialer
	store    opc.StatusStore
	log      *logger.Logger

	interval time.Duration
	connOpts opc.ConnectionOptions

	// reconcileMu makes reconciliation single-flight: overlapping passes
	// collapse into a no-op.
	reconcileMu sync.Mutex

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup

	trigger chan struct{}
}

// Options tune the supervisor; zero values take defaults.
type Options struct {
	ReconcileInterval time.Duration
	Connection        opc.ConnectionOptions
}

func New(stations StationSource, registry *opc.Registry, dial opc.Dialer, store opc.StatusStore, log *logger.Logger, opts Options) *Supervisor {
	interval := opts.ReconcileInterval
	if interval <= 0 {
		interval = defaultReconcileInterval
	}
	return &Supervisor{
		stations: stations,
		registry: registry,
		dial:     dial,
		store:    store,
		log:      log,
		interval: interval,
		connOpts: opts.Connection,
		cancels:  make(map[string]context.CancelFunc),
		trigger:  make(chan struct{}, 1),
	}
}

// Start runs the reconciliation loop until ctx is cancelled: one pass at
// startup, then periodically, plus on every explicit Trigger. The periodic
// pass self-heals from missed configuration events.
func (s *Supervisor) Start(ctx context.Context) {
	if err := s.Reconcile(ctx); err != nil {
		s.log.Errorw("initial reconciliation failed", "err", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return
		case <-s.trigger:
		case <-ticker.C:
		}
		if err := s.Reconcile(ctx); err != nil {
			s.log.Errorw("reconciliation failed", "err", err)
		}
	}
}

// Trigger requests an immediate reconciliation pass, e.g. after a station
// was added, removed, or (de)activated through the API.
func (s *Supervisor) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Reconcile computes the desired set of active stations and starts/stops
// connections to match. Idempotent: with no configuration change, a second
// pass performs no connect or disconnect actions. Concurrent invocations
// collapse into a no-op.
func (s *Supervisor) Reconcile(ctx context.Context) error {
	if !s.reconcileMu.TryLock() {
		s.log.Debugw("reconciliation already running, skipping")
		return nil
	}
	defer s.reconcileMu.Unlock()

	active, err := s.stations.ListActive(ctx)
	if err != nil {
		return err
	}

	desired := make(map[string]sm.StationConfig, len(active))
	for _, cfg := range active {
		desired[cfg.StationName] = cfg
	}

	// Stop connections whose station went inactive or was removed, and
	// restart ones whose endpoint changed under them.
	for _, name := range s.registry.Names() {
		cfg, ok := desired[name]
		if ok && s.registry.Get(name).Config().EndpointURL == cfg.EndpointURL {
			continue
		}
		if ok {
			s.log.Infow("station endpoint changed, restarting connection", "station", name)
		} else {
			s.log.Infow("station deactivated, stopping connection", "station", name)
		}
		s.stopStation(name)
	}

	// Start connections for newly active stations.
	for name, cfg := range desired {
		if s.registry.Get(name) != nil {
			continue
		}
		s.startStation(ctx, cfg)
	}
	return nil
}

func (s *Supervisor) startStation(ctx context.Context, cfg sm.StationConfig) {
	conn := opc.NewConnection(cfg, s.dial, s.store, s.log, s.connOpts)
	s.registry.Put(cfg.StationName, conn)

	cctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancels[cfg.StationName] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		conn.Run(cctx)
	}()
	s.log.Infow("station supervision started", "station", cfg.StationName, "endpoint", cfg.EndpointURL)
}

func (s *Supervisor) stopStation(name string) {
	s.mu.Lock()
	cancel, ok := s.cancels[name]
	if ok {
		delete(s.cancels, name)
	}
	s.mu.Unlock()
	if ok {
		cancel()
	}
	s.registry.Remove(name)
}

func (s *Supervisor) stopAll() {
	for _, name := range s.registry.Names() {
		s.stopStation(name)
	}
	s.wg.Wait()
}
