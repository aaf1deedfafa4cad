package notify

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
	"github.com/Nixie-Tech-LLC/premiere/internal/model"
)

// publisher is the part of *redis.Client the dispatcher uses.
type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Redis publishes JSON events on a pub/sub channel.
type Redis struct {
	client  publisher
	channel string
	now     func() time.Time
}

func NewRedis(client publisher, channel string) *Redis {
	return &Redis{client: client, channel: channel, now: time.Now}
}

func (r *Redis) NotifyFailureBatch(ctx context.Context, failures []model.FailureReport) error {
	return r.publish(ctx, Event{Kind: KindFailureBatch, At: r.now(), Failures: failures})
}

func (r *Redis) NotifyUpcoming(ctx context.Context, s model.Schedule) error {
	return r.publish(ctx, Event{Kind: KindUpcoming, At: r.now(), Schedule: &s})
}

func (r *Redis) NotifyPublished(ctx context.Context, s model.Schedule) error {
	return r.publish(ctx, Event{Kind: KindPublished, At: r.now(), Schedule: &s})
}

func (r *Redis) publish(ctx context.Context, ev Event) error {
	payload, err := ev.encode()
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return errors.Wrapf(err, "redis publish %s to %s", ev.Kind, r.channel)
	}
	return nil
}
