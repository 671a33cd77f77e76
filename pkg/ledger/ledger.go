package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/aretw0/rollkit/internal/logging"
	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/domain"
	"github.com/aretw0/rollkit/pkg/ports"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// DefaultLockTTL bounds how long a distributed channel lock is held.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Ledger orchestrates roll persistence, ensuring writes to a channel are
// serialized. It uses reference counting to garbage collect unused locks.
type Ledger struct {
	store  ports.RollStore
	roller ports.Roller

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the Ledger.
type Option func(*Ledger)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(l *Ledger) {
		l.locker = locker
	}
}

// WithLockTTL sets the TTL passed to the distributed locker.
func WithLockTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		l.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Ledger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a Ledger persisting to store and replaying through roller.
func New(store ports.RollStore, roller ports.Roller, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		roller:  roller,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (l *Ledger) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[key]
	if !exists {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (l *Ledger) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}

// Roll evaluates formula and records the result on channel.
func (l *Ledger) Roll(ctx context.Context, channel, formula string, mode dice.Mode, meta map[string]string) (*domain.RollRecord, *dice.Roll, error) {
	r, err := l.roller.Roll(ctx, formula, mode)
	if err != nil {
		return nil, nil, err
	}
	rec, err := l.Record(ctx, channel, r, mode, meta)
	if err != nil {
		return nil, nil, err
	}
	return rec, r, nil
}

// Record persists an evaluated roll on channel and returns the stored record.
func (l *Ledger) Record(ctx context.Context, channel string, r *dice.Roll, mode dice.Mode, meta map[string]string) (*domain.RollRecord, error) {
	total, err := r.Total()
	if err != nil {
		return nil, err
	}
	data, err := r.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize roll: %w", err)
	}

	rec := &domain.RollRecord{
		ID:        uuid.NewString(),
		Channel:   channel,
		Formula:   r.Formula(),
		Mode:      mode.String(),
		Total:     &total,
		Roll:      data,
		Metadata:  maps.Clone(meta),
		CreatedAt: l.now().UTC(),
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		rec.TraceID = sc.TraceID().String()
	}

	err = l.WithLock(ctx, channel, func(ctx context.Context) error {
		return l.store.Save(ctx, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record roll: %w", err)
	}
	return rec.Clone(), nil
}

// Get retrieves a record by ID.
func (l *Ledger) Get(ctx context.Context, id string) (*domain.RollRecord, error) {
	return l.store.Load(ctx, id)
}

// Replay restores a stored roll and checks it against the recorded total.
// Returns domain.ErrRollMismatch if the tree no longer adds up.
func (l *Ledger) Replay(ctx context.Context, id string) (*domain.RollRecord, *dice.Roll, error) {
	rec, err := l.store.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	mode, err := dice.ParseMode(rec.Mode)
	if err != nil {
		return nil, nil, err
	}

	r, err := l.roller.Replay(ctx, rec.Roll, mode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to restore roll %s: %w", id, err)
	}
	got, err := r.Total()
	if err != nil {
		return nil, nil, err
	}
	if rec.Total == nil || *rec.Total != got {
		return rec, r, fmt.Errorf("roll %s: %w", id, domain.ErrRollMismatch)
	}
	if err := r.Verify(); err != nil {
		return rec, r, fmt.Errorf("roll %s: %w: %w", id, domain.ErrRollMismatch, err)
	}
	return rec, r, nil
}

// History returns the records of channel, oldest first.
func (l *Ledger) History(ctx context.Context, channel string) ([]*domain.RollRecord, error) {
	return l.store.List(ctx, channel)
}

// Delete removes a record. Deleting a missing record is not an error.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	rec, err := l.store.Load(ctx, id)
	if errors.Is(err, domain.ErrRollNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return l.WithLock(ctx, rec.Channel, func(ctx context.Context) error {
		return l.store.Delete(ctx, id)
	})
}

// Store returns the underlying roll store.
func (l *Ledger) Store() ports.RollStore {
	return l.store
}

// WithLock executes a function while holding the lock for the channel.
func (l *Ledger) WithLock(ctx context.Context, channel string, fn func(context.Context) error) error {
	entry := l.acquire(channel)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		l.release(channel)
	}()

	if l.locker != nil {
		unlock, err := l.locker.Lock(ctx, "channel:"+channel, l.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				l.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"channel", channel,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
