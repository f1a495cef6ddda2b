package sync

import (
	"context"
	"sync"
	"time"

	"github.com/rdmitry/taskvault/internal/logger"
	"github.com/rdmitry/taskvault/internal/store"
	"github.com/rdmitry/taskvault/models"
)

// Scheduler owns the sync state machine: it debounces local-change
// triggers, runs periodic and manual cycles, tracks reachability, and
// publishes state to subscribers. Exactly one cycle is in flight at a
// time; all timers live inside the Run loop, so there is no locking
// discipline beyond the state mutex.
type Scheduler struct {
	protocol      Syncer
	cache         *store.StateCache
	debounce      time.Duration
	periodic      time.Duration
	authenticated func() bool
	logger        *logger.Logger

	mu          sync.Mutex
	state       models.SyncState
	online      bool
	conflicts   []models.Conflict
	subscribers map[int]func(models.SyncState)
	nextSub     int

	mutationCh chan struct{}
	manualCh   chan struct{}
	onlineCh   chan bool
}

// NewScheduler constructs a Scheduler. The cached sync state, when
// present, pre-populates the published state so a restarted process shows
// its last known sync time instead of a blank slate. authenticated gates
// automatic triggers; nil means always authenticated.
func NewScheduler(
	protocol Syncer,
	cache *store.StateCache,
	debounce, periodic time.Duration,
	authenticated func() bool,
	log *logger.Logger,
) *Scheduler {
	if authenticated == nil {
		authenticated = func() bool { return true }
	}

	state := models.SyncState{Status: models.StatusIdle}
	if cached, ok := cache.Load(context.Background()); ok {
		state.LastSyncTime = cached.LastSyncTime
		state.PendingChanges = cached.PendingChanges
		state.ConflictCount = cached.ConflictCount
	}

	return &Scheduler{
		protocol:      protocol,
		cache:         cache,
		debounce:      debounce,
		periodic:      periodic,
		authenticated: authenticated,
		logger:        log,
		state:         state,
		online:        true,
		subscribers:   make(map[int]func(models.SyncState)),
		mutationCh:    make(chan struct{}, 1),
		manualCh:      make(chan struct{}, 1),
		onlineCh:      make(chan bool, 1),
	}
}

// Run implements [Worker]. It owns the debounce timer and the periodic
// ticker and blocks until ctx is cancelled. Triggers arriving while a
// cycle is in flight sit in their one-slot channels and are handled after
// the cycle completes, which coalesces bursts into a single follow-up.
func (s *Scheduler) Run(ctx context.Context) {
	debounceTimer := time.NewTimer(s.debounce)
	stopTimer(debounceTimer)
	defer stopTimer(debounceTimer)

	periodicTicker := time.NewTicker(s.periodic)
	defer periodicTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.mutationCh:
			if !s.isOnline() {
				// No debounce while offline; the restore trigger will
				// pick the mutation up.
				continue
			}
			resetTimer(debounceTimer, s.debounce)

		case <-debounceTimer.C:
			if s.isOnline() && s.authenticated() {
				s.runCycle(ctx)
			}

		case <-periodicTicker.C:
			if s.isOnline() && s.authenticated() && s.currentStatus() == models.StatusIdle {
				s.runCycle(ctx)
			}

		case <-s.manualCh:
			stopTimer(debounceTimer)
			s.runCycle(ctx)

		case online := <-s.onlineCh:
			s.applyReachability(ctx, online, debounceTimer)
		}
	}
}

// MarkPendingChanges records a local mutation and (re)arms the debounce.
// Safe to call from any goroutine, including UI-driven mutations that
// bypass the dataset write path.
func (s *Scheduler) MarkPendingChanges() {
	s.setState(func(st *models.SyncState) {
		st.PendingChanges = true
	})

	select {
	case s.mutationCh <- struct{}{}:
	default:
	}
}

// ManualSync requests one cycle unconditionally, cancelling any pending
// debounce. A request arriving while a cycle is in flight is coalesced.
func (s *Scheduler) ManualSync() {
	select {
	case s.manualCh <- struct{}{}:
	default:
	}
}

// SetOnline feeds a reachability observation into the state machine.
func (s *Scheduler) SetOnline(online bool) {
	// Only the latest observation matters.
	select {
	case <-s.onlineCh:
	default:
	}
	s.onlineCh <- online
}

// State returns a copy of the current sync state.
func (s *Scheduler) State() models.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conflicts returns a copy of the conflicts from the last cycle that
// ended in [models.StatusConflict].
func (s *Scheduler) Conflicts() []models.Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Conflict, len(s.conflicts))
	copy(out, s.conflicts)
	return out
}

// ResolveConflicts settles the pending conflicts with the given choices.
// The protocol writes the resolved dataset to both stores; the follow-up
// cycle scheduled here re-merges the now-identical snapshots, confirming
// convergence and refreshing the published state.
func (s *Scheduler) ResolveConflicts(ctx context.Context, choices []models.ResolutionChoice) error {
	conflicts := s.Conflicts()

	if err := s.protocol.ResolveConflicts(ctx, conflicts, choices); err != nil {
		return err
	}

	s.mu.Lock()
	s.conflicts = nil
	s.mu.Unlock()
	s.setState(func(st *models.SyncState) {
		st.ConflictCount = 0
	})

	s.MarkPendingChanges()
	return nil
}

// Subscribe registers fn for state-change notifications and returns its
// unsubscribe handle. Notifications are synchronous fan-out; a panicking
// listener does not prevent the others from being notified.
func (s *Scheduler) Subscribe(fn func(models.SyncState)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	s.setState(func(st *models.SyncState) {
		st.Status = models.StatusSyncing
	})

	result, err := s.protocol.SyncOnce(ctx)

	switch {
	case err != nil:
		s.logger.Err(err).Msg("sync cycle failed")
		s.setState(func(st *models.SyncState) {
			st.Status = models.StatusError
			st.LastError = err.Error()
		})

	case result.Outcome == OutcomeConflict:
		s.mu.Lock()
		s.conflicts = result.Conflicts
		s.mu.Unlock()
		s.setState(func(st *models.SyncState) {
			st.Status = models.StatusConflict
			st.ConflictCount = len(result.Conflicts)
		})

	default:
		s.setState(func(st *models.SyncState) {
			st.Status = models.StatusSuccess
			st.LastSyncTime = result.Merged.LastSync
			st.LastError = ""
			st.PendingChanges = false
			st.ConflictCount = 0
		})
	}

	// Terminal states decay back to idle once published; the terminal
	// fields (last error, conflict count, sync time) stay visible.
	s.mu.Lock()
	s.state.Status = models.StatusIdle
	s.mu.Unlock()
}

func (s *Scheduler) applyReachability(ctx context.Context, online bool, debounceTimer *time.Timer) {
	s.mu.Lock()
	was := s.online
	s.online = online
	s.mu.Unlock()

	if was == online {
		return
	}

	if !online {
		stopTimer(debounceTimer)
		s.logger.Warn().Msg("network lost, sync suspended")
		s.setState(func(st *models.SyncState) {
			st.Status = models.StatusOffline
		})
		return
	}

	s.logger.Info().Msg("network restored, syncing")
	s.setState(func(st *models.SyncState) {
		st.Status = models.StatusIdle
	})
	if s.authenticated() {
		s.runCycle(ctx)
	}
}

// setState applies mutate under the lock, then notifies subscribers with
// the resulting copy and refreshes the best-effort state cache.
func (s *Scheduler) setState(mutate func(*models.SyncState)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.state
	listeners := make([]func(models.SyncState), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		s.notify(fn, snapshot)
	}

	if err := s.cache.Save(context.Background(), snapshot); err != nil {
		s.logger.Debug().Err(err).Msg("sync state cache write failed")
	}
}

func (s *Scheduler) notify(fn func(models.SyncState), state models.SyncState) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("state listener panicked")
		}
	}()
	fn(state)
}

func (s *Scheduler) isOnline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *Scheduler) currentStatus() models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status
}

// stopTimer stops t and drains a fire that already happened, leaving the
// timer safe to Reset.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}
