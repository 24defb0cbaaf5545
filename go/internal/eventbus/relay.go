package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// RelayConfig tunes how aggressively the Relay retries a publish and
// how often it falls back to polling for rows a missed NOTIFY left
// unsent.
type RelayConfig struct {
	FallbackInterval time.Duration
	PingInterval     time.Duration
	BatchSize        int
	MaxRetries       int
	RetryDelay       time.Duration
}

// DefaultRelayConfig matches the teacher's outbox.Listener defaults.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		FallbackInterval: 30 * time.Second,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
	}
}

// Relay listens for draft_outbox_events NOTIFYs, fetches and publishes
// the row, marks it sent; a fallback ticker sweeps any rows a missed
// notification left unsent. A crashed Relay never blocks drafting —
// the draftservice request path only ever inserts outbox rows, never
// waits on delivery.
type Relay struct {
	repo      *Repository
	publisher Publisher
	listener  *pq.Listener
	cfg       RelayConfig
}

// NewRelay opens a dedicated pq.Listener connection on dsn and LISTENs
// on draft_outbox_events.
func NewRelay(dsn string, repo *Repository, publisher Publisher, cfg RelayConfig) (*Relay, error) {
	listener := pq.NewListener(dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Error().Err(err).Msg("eventbus relay listener event")
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		return nil, fmt.Errorf("eventbus: listen on %s: %w", notifyChannel, err)
	}
	return &Relay{repo: repo, publisher: publisher, listener: listener, cfg: cfg}, nil
}

// Run services notifications and the fallback poll until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	pingTicker := time.NewTicker(r.cfg.PingInterval)
	fallbackTicker := time.NewTicker(r.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	// Catch up on anything a prior crash left unsent before waiting on
	// the first NOTIFY.
	if err := r.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("eventbus relay initial sweep failed")
	}

	for {
		select {
		case <-ctx.Done():
			return r.listener.Close()
		case note := <-r.listener.Notify:
			if note == nil {
				continue // connection reset; pq reconnects and resumes LISTEN
			}
			if err := r.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("eventbus relay failed to handle notification")
			}
		case <-fallbackTicker.C:
			if err := r.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("eventbus relay fallback sweep failed")
			}
		case <-pingTicker.C:
			if err := r.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("eventbus relay ping failed")
			}
		}
	}
}

func (r *Relay) handleNotification(ctx context.Context, extra string) error {
	id, err := uuid.Parse(extra)
	if err != nil {
		return fmt.Errorf("eventbus: invalid event id in notification %q: %w", extra, err)
	}
	event, err := r.repo.FetchByID(ctx, id)
	if err != nil {
		return err
	}
	return r.publishWithRetry(ctx, event)
}

func (r *Relay) processUnsent(ctx context.Context) error {
	events, err := r.repo.FetchUnsent(ctx, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, event := range events {
		if err := r.publishWithRetry(ctx, event); err != nil {
			log.Error().Err(err).Str("event_id", event.ID.String()).Msg("eventbus relay publish failed")
		}
	}
	return nil
}

func (r *Relay) publishWithRetry(ctx context.Context, event OutboxEvent) error {
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.RetryDelay * time.Duration(attempt)):
			}
		}
		if err := r.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			continue
		}
		return r.repo.MarkSent(ctx, event.ID, time.Now())
	}
	return fmt.Errorf("eventbus: publish failed after %d attempts: %w", r.cfg.MaxRetries+1, lastErr)
}
