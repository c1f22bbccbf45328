package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Kind is the type of a queued submission; it selects the API endpoint.
type Kind string

const (
	KindIncident      Kind = "incident"
	KindSpillKitCheck Kind = "spill_kit_check"
)

// Path is the API path (relative to the /api base) a kind is posted to.
func (k Kind) Path() (string, bool) {
	switch k {
	case KindIncident:
		return "/incidents", true
	case KindSpillKitCheck:
		return "/spill-kits/checks", true
	}
	return "", false
}

var (
	// ErrPermanent marks a failure that retrying will not fix. Senders wrap it.
	ErrPermanent    = errors.New("permanent failure")
	ErrUnknownKind  = errors.New("unknown submission kind")
	ErrEmptyPayload = errors.New("empty payload")
)

const (
	pendingPrefix = "q/"
	deadPrefix    = "dead/"

	DefaultBaseBackoff = 2 * time.Second
	DefaultMaxBackoff  = 5 * time.Minute
)

// Submission is one buffered write waiting to reach the API.
type Submission struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Kind           Kind            `json:"kind"`
	Payload        json.RawMessage `json:"payload"`
	Attempts       int             `json:"attempts"`
	NextAttemptAt  time.Time       `json:"next_attempt_at"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (s Submission) key() []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", pendingPrefix, s.CreatedAt.UnixNano(), s.IdempotencyKey))
}

func (s Submission) deadKey() []byte {
	return []byte(deadPrefix + s.IdempotencyKey)
}

// Sender delivers a submission. Returning an error wrapping ErrPermanent
// dead-letters it; any other error schedules a retry.
type Sender interface {
	Send(ctx context.Context, s Submission) error
}

// Queue is a durable FIFO of submissions stored in badger.
type Queue struct {
	db          *badger.DB
	now         func() time.Time
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// Open opens (or creates) the queue in dir. An empty dir keeps the queue in
// memory.
func Open(dir string) (*Queue, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(log.WithField("component", "badger")).
		WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	return &Queue{
		db:          db,
		now:         time.Now,
		baseBackoff: DefaultBaseBackoff,
		maxBackoff:  DefaultMaxBackoff,
	}, nil
}

func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue stores a new submission under a fresh idempotency key.
func (q *Queue) Enqueue(kind Kind, payload json.RawMessage) (Submission, error) {
	if _, ok := kind.Path(); !ok {
		return Submission{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if len(payload) == 0 {
		return Submission{}, ErrEmptyPayload
	}
	if !json.Valid(payload) {
		return Submission{}, fmt.Errorf("payload is not valid JSON")
	}

	now := q.now().UTC()
	s := Submission{
		IdempotencyKey: uuid.NewString(),
		Kind:           kind,
		Payload:        payload,
		NextAttemptAt:  now,
		CreatedAt:      now,
	}
	if err := q.put(s.key(), s); err != nil {
		return Submission{}, err
	}
	return s, nil
}

// Pending returns the number of submissions not yet delivered or
// dead-lettered.
func (q *Queue) Pending() (int, error) {
	n := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(pendingPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// List returns pending submissions oldest first.
func (q *Queue) List() ([]Submission, error) {
	return q.scan(pendingPrefix)
}

// DeadLetters returns submissions that failed permanently.
func (q *Queue) DeadLetters() ([]Submission, error) {
	return q.scan(deadPrefix)
}

// ReplayResult counts what one Replay pass did.
type ReplayResult struct {
	Sent    int
	Retried int
	Dead    int
	Waiting int
}

// Replay sends every due submission in FIFO order. It stops early, without
// error, when ctx is cancelled.
func (q *Queue) Replay(ctx context.Context, sender Sender) (ReplayResult, error) {
	var res ReplayResult

	pending, err := q.List()
	if err != nil {
		return res, err
	}

	for _, s := range pending {
		if ctx.Err() != nil {
			break
		}
		now := q.now().UTC()
		if s.NextAttemptAt.After(now) {
			res.Waiting++
			continue
		}

		entry := log.WithFields(log.Fields{
			"idempotency_key": s.IdempotencyKey,
			"kind":            s.Kind,
			"attempt":         s.Attempts + 1,
		})

		sendErr := sender.Send(ctx, s)
		switch {
		case sendErr == nil:
			if err := q.delete(s.key()); err != nil {
				return res, err
			}
			res.Sent++
			entry.Info("Submission delivered")

		case errors.Is(sendErr, ErrPermanent):
			s.Attempts++
			s.LastError = sendErr.Error()
			if err := q.moveToDead(s); err != nil {
				return res, err
			}
			res.Dead++
			entry.WithError(sendErr).Error("Submission rejected, moved to dead letters")

		default:
			s.Attempts++
			s.LastError = sendErr.Error()
			s.NextAttemptAt = now.Add(q.backoff(s.Attempts))
			if err := q.put(s.key(), s); err != nil {
				return res, err
			}
			res.Retried++
			entry.WithError(sendErr).WithField("next_attempt_at", s.NextAttemptAt).Warn("Submission failed, will retry")
		}
	}
	return res, nil
}

// backoff is base * 2^(attempts-1), capped at max.
func (q *Queue) backoff(attempts int) time.Duration {
	d := q.baseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= q.maxBackoff {
			return q.maxBackoff
		}
	}
	if d > q.maxBackoff {
		return q.maxBackoff
	}
	return d
}

func (q *Queue) put(key []byte, s Submission) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (q *Queue) delete(key []byte) error {
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (q *Queue) moveToDead(s Submission) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(s.key()); err != nil {
			return err
		}
		return txn.Set(s.deadKey(), data)
	})
}

func (q *Queue) scan(prefix string) ([]Submission, error) {
	var out []Submission
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var s Submission
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &s)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, s)
		}
		return nil
	})
	return out, err
}
