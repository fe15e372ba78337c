package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/teslahub/internal/domain"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/relay"
)

const (
	// DefaultSessionTTL caps how long a record can live if both the
	// per-session timeout and the sweep missed it
	DefaultSessionTTL = 24 * time.Hour

	// watchRetries bounds optimistic-lock retries of conditional writes
	watchRetries = 5
)

// Store is the Redis relay backend. It implements relay.SweepBackend.
type Store struct {
	client *redis.Client
	logger logger.Logger
	ttl    time.Duration
}

var _ relay.SweepBackend = (*Store)(nil)

// NewStore creates a new Redis relay store
func NewStore(client *redis.Client, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNop()
	}
	return &Store{
		client: client,
		logger: log,
		ttl:    DefaultSessionTTL,
	}
}

// Ping checks the connection (readiness probe)
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Create stores a new session, indexes it by creation time and notifies
// subscribers
func (s *Store) Create(ctx context.Context, session *domain.RelaySession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, SessionKey(session.SessionID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if !ok {
		return relay.ErrExists
	}

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, CreatedKey(), redis.Z{Score: float64(session.CreatedAt), Member: session.SessionID})
	s.queuePublish(ctx, pipe, relay.Event{SessionID: session.SessionID, Session: session})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to index session: %w", err)
	}
	return nil
}

// Get retrieves a session from Redis by ID
func (s *Store) Get(ctx context.Context, id string) (*domain.RelaySession, error) {
	return getSession(ctx, s.client, id)
}

// Complete moves a pending session to completed under WATCH, so two
// submissions can never both succeed
func (s *Store) Complete(ctx context.Context, id, name, url string) error {
	key := SessionKey(id)

	var completed *domain.RelaySession
	txf := func(tx *redis.Tx) error {
		current, err := getSession(ctx, tx, id)
		if err != nil {
			return err
		}
		if !current.IsPending() {
			return relay.ErrNotPending
		}

		next := current.Clone()
		next.Status = domain.StatusCompleted
		next.Name = name
		next.URL = url
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		if err == nil {
			completed = next
		}
		return err
	}

	if err := s.watch(ctx, id, "complete", txf); err != nil {
		return err
	}
	s.publish(ctx, relay.Event{SessionID: id, Session: completed})
	return nil
}

// Take reads and deletes a session in one WATCH transaction, so concurrent
// readers cannot both get it
func (s *Store) Take(ctx context.Context, id string, kind domain.SessionKind) (*domain.RelaySession, error) {
	var taken *domain.RelaySession
	txf := func(tx *redis.Tx) error {
		current, err := getSession(ctx, tx, id)
		if err != nil {
			return err
		}
		if kind != "" && current.Kind != kind {
			return relay.ErrWrongKind
		}
		if err := s.remove(ctx, tx, id); err != nil {
			return err
		}
		taken = current
		return nil
	}

	if err := s.watch(ctx, id, "take", txf); err != nil {
		return nil, err
	}
	s.publish(ctx, relay.Event{SessionID: id, Deleted: true})
	return taken, nil
}

// DeleteIfPending removes a session unless it was completed meanwhile
func (s *Store) DeleteIfPending(ctx context.Context, id string) error {
	txf := func(tx *redis.Tx) error {
		current, err := getSession(ctx, tx, id)
		if err != nil {
			return err
		}
		if !current.IsPending() {
			return relay.ErrNotPending
		}
		return s.remove(ctx, tx, id)
	}

	if err := s.watch(ctx, id, "delete", txf); err != nil {
		return err
	}
	s.publish(ctx, relay.Event{SessionID: id, Deleted: true})
	return nil
}

// Delete removes a session. Deleting a missing session is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, SessionKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := s.client.ZRem(ctx, CreatedKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to remove session from index: %w", err)
	}
	if n > 0 {
		s.publish(ctx, relay.Event{SessionID: id, Deleted: true})
	}
	return nil
}

// Subscribe streams the current record and then every change, read from
// the session's pub/sub channel
func (s *Store) Subscribe(ctx context.Context, id string) (<-chan relay.Event, error) {
	ps := s.client.Subscribe(ctx, EventsChannel(id))

	// Wait for the subscription to be confirmed before reading the current
	// value, so no change can fall in between.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to session events: %w", err)
	}

	first := relay.Event{SessionID: id}
	current, err := s.Get(ctx, id)
	switch {
	case errors.Is(err, relay.ErrNotFound):
		first.Deleted = true
	case err != nil:
		_ = ps.Close()
		return nil, err
	default:
		first.Session = current
	}

	out := make(chan relay.Event, 1)
	out <- first

	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev relay.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.logger.Warn("dropping undecodable session event",
						logger.String("session_id", id),
						logger.Error(err))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// CreatedBefore returns the IDs of sessions created at or before cutoff
func (s *Store) CreatedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, CreatedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to range sessions: %w", err)
	}
	return ids, nil
}

func (s *Store) queuePublish(ctx context.Context, pipe redis.Pipeliner, ev relay.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to marshal session event", logger.Error(err))
		return
	}
	pipe.Publish(ctx, EventsChannel(ev.SessionID), data)
}

// publish is best effort: the record is already written, subscribers that
// miss the event still see the state on their next read.
func (s *Store) publish(ctx context.Context, ev relay.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to marshal session event", logger.Error(err))
		return
	}
	if err := s.client.Publish(ctx, EventsChannel(ev.SessionID), data).Err(); err != nil {
		s.logger.Warn("failed to publish session event",
			logger.String("session_id", ev.SessionID),
			logger.Error(err))
	}
}

// watch runs txf under WATCH on the session key and retries while another
// client changes the key in between
func (s *Store) watch(ctx context.Context, id, op string, txf func(tx *redis.Tx) error) error {
	for attempt := 1; attempt <= watchRetries; attempt++ {
		err := s.client.Watch(ctx, txf, SessionKey(id))
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("session changed during "+op+", retrying",
				logger.String("session_id", id),
				logger.Int("attempt", attempt))
			continue
		}
		return err
	}
	return fmt.Errorf("failed to %s session %s: too much contention", op, id)
}

// remove queues the delete of a watched session and its index entry
func (s *Store) remove(ctx context.Context, tx *redis.Tx, id string) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, SessionKey(id))
		pipe.ZRem(ctx, CreatedKey(), id)
		return nil
	})
	return err
}

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getSession(ctx context.Context, c getter, id string) (*domain.RelaySession, error) {
	data, err := c.Get(ctx, SessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, relay.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session domain.RelaySession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}
