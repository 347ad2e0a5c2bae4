// Package watchdog keeps systemd's service watchdog fed.
//
// When the unit declares WatchdogSec, systemd expects a WATCHDOG=1 ping
// within every period or it kills the service. The ping rides on a single
// repeating timer slot at half the declared period.
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"timekeep/pkg/logx"
	"timekeep/pkg/timeslot"
)

type Config struct {
	Enabled bool
}

// Notifier abstracts sd_notify so tests can run without a systemd socket.
type Notifier interface {
	Notify(state string) (bool, error)
	WatchdogPeriod() (time.Duration, error)
}

type sdNotifier struct{}

func (sdNotifier) Notify(state string) (bool, error) {
	return daemon.SdNotify(false, state)
}

func (sdNotifier) WatchdogPeriod() (time.Duration, error) {
	return daemon.SdWatchdogEnabled(false)
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	sd     Notifier
	timers *timeslot.Manager
	slot   timeslot.Slot

	running bool
}

func New(cfg Config, log logx.Logger) *Service {
	return &Service{
		cfg:    cfg,
		log:    log,
		sd:     sdNotifier{},
		timers: timeslot.New(nil),
	}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

// Start announces readiness and begins pinging if the unit asked for a
// watchdog. Outside systemd both notify calls are cheap no-ops.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || !s.cfg.Enabled {
		return
	}
	s.running = true

	if ok, err := s.sd.Notify(daemon.SdNotifyReady); err != nil {
		s.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if !ok {
		s.log.Debug("systemd notify socket absent, watchdog idle")
		return
	}

	period, err := s.sd.WatchdogPeriod()
	if err != nil {
		s.log.Warn("watchdog period lookup failed", logx.Err(err))
		return
	}
	if period <= 0 {
		s.log.Debug("unit declares no watchdog")
		return
	}

	interval := period / 2
	_, err = s.timers.ArmRepeating(func() {
		if _, perr := s.sd.Notify(daemon.SdNotifyWatchdog); perr != nil {
			s.log.Warn("watchdog ping failed", logx.Err(perr))
		}
	}, interval, &s.slot)
	if err != nil {
		s.log.Error("watchdog timer arm failed", logx.Err(err))
		return
	}
	s.log.Info("watchdog pinging", logx.Duration("interval", interval))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if err := s.timers.Cancel(&s.slot); err != nil {
		s.log.Warn("watchdog timer cancel fault", logx.Err(err))
	}
	if _, err := s.sd.Notify(daemon.SdNotifyStopping); err != nil {
		s.log.Warn("sd_notify stopping failed", logx.Err(err))
	}
}
