package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cryptosim/cryptosim/internal/notification"
)

const defaultSaveTimeout = 5 * time.Second

// Change is what a Mutator decided. A nil Next leaves the state untouched.
type Change struct {
	Next   *Portfolio
	Notice *notification.Notification
}

// Mutator computes the next state from one consistent snapshot of the current
// state. Returning an error rejects the operation; the state is not modified.
type Mutator func(current Portfolio) (Change, error)

// Store holds the canonical portfolio of a session and applies every mutation
// as a single read-compute-write step.
type Store struct {
	mu        sync.Mutex
	state     Portfolio
	closed    bool
	observers []func(Portfolio)

	repo     Repository
	logger   *slog.Logger
	notifier notification.Notifier
	slot     notification.Slot

	saveTimeout time.Duration
	saveCh      chan Portfolio
	done        chan struct{}
}

// NewStore builds a store backed by repo and starts its background persister.
// The store starts from the initial portfolio until Load is called.
func NewStore(repo Repository, logger *slog.Logger, notifier notification.Notifier) *Store {
	if repo == nil {
		repo = NewInMemory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		state:       NewPortfolio(),
		repo:        repo,
		logger:      logger,
		notifier:    notifier,
		saveTimeout: defaultSaveTimeout,
		saveCh:      make(chan Portfolio, 1),
		done:        make(chan struct{}),
	}
	go s.persist()
	return s
}

// Load restores state from the repository. When nothing was saved yet the
// initial portfolio is kept and scheduled for saving. A failing repository is
// logged and the session continues with the initial portfolio. It reports
// whether saved state was restored.
func (s *Store) Load(ctx context.Context) bool {
	p, err := s.repo.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case err == nil:
		s.state = p
		s.notifyObserversLocked()
		return true
	case errors.Is(err, ErrNotFound):
		s.state = NewPortfolio()
		s.enqueueSaveLocked(s.state.Clone())
	default:
		s.logger.Error("load portfolio", "error", err)
		s.state = NewPortfolio()
	}
	s.notifyObserversLocked()
	return false
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Portfolio {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Subscribe registers fn to be called, in commit order, with every state that
// replaces the current one. fn runs while the store is locked and must not
// call back into the store.
func (s *Store) Subscribe(fn func(Portfolio)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Commit runs m against the current state and atomically installs its result.
// Rejections are surfaced as an error notification and returned unchanged so
// callers can match them with errors.Is.
func (s *Store) Commit(ctx context.Context, m Mutator) (Portfolio, *notification.Notification, error) {
	s.mu.Lock()

	change, err := m(s.state.Clone())
	notice := change.Notice
	if err != nil {
		var rej *RejectError
		if notice == nil && errors.As(err, &rej) {
			notice = notification.Error(rej.Key, nil)
		}
		if notice != nil {
			s.slot.Set(notice)
		}
		snapshot := s.state.Clone()
		s.mu.Unlock()
		s.send(ctx, notice)
		return snapshot, notice, err
	}

	if change.Next != nil {
		s.state = change.Next.Clone()
		s.enqueueSaveLocked(s.state.Clone())
		s.notifyObserversLocked()
	}
	if notice != nil {
		s.slot.Set(notice)
	}
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.send(ctx, notice)
	return snapshot, notice, nil
}

// Notification returns the most recent notification, or nil.
func (s *Store) Notification() *notification.Notification {
	return s.slot.Current()
}

// ClearNotification empties the notification slot. It is idempotent.
func (s *Store) ClearNotification() {
	s.slot.Clear()
}

// Close stops accepting saves and waits for the last pending save to finish
// or for ctx to expire.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.saveCh)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) send(ctx context.Context, n *notification.Notification) {
	if n == nil || s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, *n); err != nil {
		s.logger.Warn("send notification", "key", n.MessageKey, "error", err)
	}
}

func (s *Store) notifyObserversLocked() {
	for _, fn := range s.observers {
		fn(s.state.Clone())
	}
}

// enqueueSaveLocked keeps only the newest unsaved state in the queue.
func (s *Store) enqueueSaveLocked(p Portfolio) {
	if s.closed {
		return
	}
	select {
	case <-s.saveCh:
	default:
	}
	s.saveCh <- p
}

func (s *Store) persist() {
	defer close(s.done)
	for p := range s.saveCh {
		ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
		if err := s.repo.Save(ctx, p); err != nil {
			s.logger.Error("save portfolio", "error", err)
		}
		cancel()
	}
}
