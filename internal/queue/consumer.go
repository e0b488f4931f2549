package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const auditFileName = "scoring.log"

// AuditConsumer listens to the match.scored and fixtures.synced queues and
// appends one human-readable line per event to <dir>/scoring.log.
type AuditConsumer struct {
	url string
	dir string
	log *zap.Logger
}

func NewAuditConsumer(url, dir string, log *zap.Logger) *AuditConsumer {
	if dir == "" {
		dir = "logs"
	}
	return &AuditConsumer{url: url, dir: dir, log: log.Named("audit-consumer")}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled, reconnecting
// with exponential backoff (capped at 30s) whenever the broker goes away.
// Messages that cannot be handled are rejected without requeue.
func (c *AuditConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("failed to dial broker", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("consume loop ended; reconnecting", zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("set QoS failed", zap.Error(err))
	}

	scored, err := c.subscribe(ch, MatchScoredQueue)
	if err != nil {
		return err
	}
	synced, err := c.subscribe(ch, FixturesSyncedQueue)
	if err != nil {
		return err
	}

	for {
		var (
			d     amqp.Delivery
			ok    bool
			queue string
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok = <-scored:
			queue = MatchScoredQueue
		case d, ok = <-synced:
			queue = FixturesSyncedQueue
		}
		if !ok {
			return errors.New("deliveries channel closed")
		}
		if err := c.handle(queue, d.Body); err != nil {
			c.log.Warn("handle message failed", zap.String("queue", queue), zap.Error(err))
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
}

func (c *AuditConsumer) subscribe(ch *amqp.Channel, name string) (<-chan amqp.Delivery, error) {
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", name, err)
	}
	msgs, err := ch.Consume(name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("queue consume %s: %w", name, err)
	}
	return msgs, nil
}

func (c *AuditConsumer) handle(queue string, body []byte) error {
	line, err := formatAuditLine(queue, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.dir, auditFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// formatAuditLine renders one event as a single log line ending in '\n'.
func formatAuditLine(queue string, body []byte) (string, error) {
	switch queue {
	case MatchScoredQueue:
		var ev MatchScoredEvent
		if err := sonic.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		outcome := ev.Outcome
		if outcome == "" {
			outcome = "-"
		}
		return fmt.Sprintf("[%s] Match scored | match_id=%d | %q vs %q | status=%s | score=%s | outcome=%s | predictions=%d\n",
			ev.ScoredAt, ev.MatchID, ev.HomeTeam, ev.AwayTeam, ev.Status,
			scoreLine(ev.HomeScore, ev.AwayScore), outcome, ev.PredictionsScored), nil
	case FixturesSyncedQueue:
		var ev FixturesSyncedEvent
		if err := sonic.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		leagues := make([]string, 0, len(ev.Leagues))
		for _, l := range ev.Leagues {
			leagues = append(leagues, fmt.Sprint(l))
		}
		return fmt.Sprintf("[%s] Fixtures synced | leagues=[%s] | season=%d | fetched=%d | created=%d | updated=%d | skipped=%d | rescored=%d\n",
			ev.SyncedAt, strings.Join(leagues, ","), ev.Season, ev.Fetched, ev.Created, ev.Updated, ev.Skipped, ev.Rescored), nil
	}
	return "", fmt.Errorf("unknown queue %q", queue)
}

func scoreLine(home, away *int) string {
	if home == nil || away == nil {
		return "-"
	}
	return fmt.Sprintf("%d-%d", *home, *away)
}
