// Package scheduler is the timer-driven loop that turns the core's
// transmitter methods into a running daemon: announce/sync/push-local on
// their own intervals, plus a retention sweep, all driven from one
// goroutine with one ticker per tick source.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/alfredd/internal/alfred"
)

// Config sets the four tick intervals the scheduler drives. A zero
// interval disables that tick entirely.
type Config struct {
	AnnounceInterval  time.Duration
	SyncInterval      time.Duration
	PushLocalInterval time.Duration
	SweepInterval     time.Duration

	CacheTTL time.Duration
	PeerTTL  time.Duration
	TxTTL    time.Duration
}

// DefaultConfig mirrors the upstream daemon's defaults: frequent enough to
// keep a small mesh converged without flooding it.
func DefaultConfig() Config {
	return Config{
		AnnounceInterval:  10 * time.Second,
		SyncInterval:      5 * time.Second,
		PushLocalInterval: 5 * time.Second,
		SweepInterval:     30 * time.Second,
		CacheTTL:          10 * time.Minute,
		PeerTTL:           time.Minute,
		TxTTL:             30 * time.Second,
	}
}

// Scheduler owns the four tickers and the core they drive.
type Scheduler struct {
	core   *alfred.Core
	cfg    Config
	logger zerolog.Logger
}

// New builds a Scheduler bound to core.
func New(core *alfred.Core, cfg Config, logger zerolog.Logger) *Scheduler {
	return &Scheduler{core: core, cfg: cfg, logger: logger}
}

// Run blocks, driving every configured tick until ctx is canceled. Each
// tick type gets its own ticker (a zero interval yields a nil channel,
// which a select simply never fires on) so independent intervals don't
// drift against each other.
func (s *Scheduler) Run(ctx context.Context) error {
	announce := newTicker(s.cfg.AnnounceInterval)
	sync := newTicker(s.cfg.SyncInterval)
	pushLocal := newTicker(s.cfg.PushLocalInterval)
	sweep := newTicker(s.cfg.SweepInterval)
	defer stopTicker(announce)
	defer stopTicker(sync)
	defer stopTicker(pushLocal)
	defer stopTicker(sweep)

	s.logger.Info().Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return nil
		case <-tickerChan(announce):
			if s.core.Mode == alfred.ModeMaster {
				s.TickAnnounce()
			}
		case <-tickerChan(sync):
			s.TickSync()
		case <-tickerChan(pushLocal):
			s.TickPushLocal()
		case <-tickerChan(sweep):
			s.TickSweep()
		}
	}
}

// TickAnnounce fires AnnounceMaster on every interface. It does not check
// the core's Mode itself; Run only calls it when the core is a master.
func (s *Scheduler) TickAnnounce() {
	s.core.AnnounceMaster()
	s.logger.Debug().Msg("announce_master sent")
}

// TickSync pushes everything first-hand-or-better to every known peer.
func (s *Scheduler) TickSync() {
	s.core.SyncData()
	s.logger.Debug().Msg("sync_data sent")
}

// TickPushLocal re-elects the best server from the current peer tables,
// then pushes local data to it, if any peer is known.
func (s *Scheduler) TickPushLocal() {
	s.core.ElectBestServer()
	if ok := s.core.PushLocalData(); ok {
		s.logger.Debug().Msg("push_local_data sent")
	}
}

// TickSweep runs the cache/peer/transaction retention sweep.
func (s *Scheduler) TickSweep() {
	now := time.Now()
	s.core.Sweep(now, s.cfg.CacheTTL, s.cfg.PeerTTL, s.cfg.TxTTL)
	s.logger.Debug().Msg("retention sweep ran")
}

func newTicker(interval time.Duration) *time.Ticker {
	if interval <= 0 {
		return nil
	}
	return time.NewTicker(interval)
}

func stopTicker(t *time.Ticker) {
	if t != nil {
		t.Stop()
	}
}

func tickerChan(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}
