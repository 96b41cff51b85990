// Package notify publishes element change reports to Redis.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/sigreer/sesdiag/internal/enclosure"
)

// historyLen bounds the per-device list of recent reports.
const historyLen = 1000

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Publisher sends change reports on a pub/sub channel and keeps the most
// recent ones in a list per device. It implements enclosure.Sink.
type Publisher struct {
	client  *redis.Client
	channel string
	log     logrus.FieldLogger
}

// NewPublisher connects and pings the server.
func NewPublisher(ctx context.Context, opts Options, log logrus.FieldLogger) (*Publisher, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	log.WithFields(logrus.Fields{"addr": opts.Addr, "channel": opts.Channel}).Info("connected to redis")
	return &Publisher{client: client, channel: opts.Channel, log: log}, nil
}

// Close releases the connection pool.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// HistoryKey is the list holding recent reports of a device.
func HistoryKey(device string) string {
	return fmt.Sprintf("sesdiag:%s:changes", device)
}

// Encode returns the message published for r, or nil when the poll found
// no changes.
func Encode(r *enclosure.ChangeReport) ([]byte, error) {
	if len(r.Changes) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode change report: %w", err)
	}
	return b, nil
}

// Record publishes a report with changes. Polls without changes are not
// sent.
func (p *Publisher) Record(ctx context.Context, r *enclosure.ChangeReport) error {
	msg, err := Encode(r)
	if err != nil || msg == nil {
		return err
	}

	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to publish change report: %w", err)
	}

	key := HistoryKey(r.Device)
	pipe := p.client.Pipeline()
	pipe.LPush(ctx, key, msg)
	pipe.LTrim(ctx, key, 0, historyLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.WithError(err).WithField("key", key).Warn("failed to store change history")
	}

	p.log.WithFields(logrus.Fields{"channel": p.channel, "changes": len(r.Changes)}).Debug("published change report")
	return nil
}
