package replication

import (
	"context"
	"errors"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

var ErrSubscriptionClosed = errors.New("subscription closed")

var _ iface.ReplicationBus = new(RedisBus)

// RedisBus publishes events on a single redis channel.
type RedisBus struct {
	client  redis.UniversalClient
	channel string

	log *logrus.Entry
}

func NewRedisBus(client redis.UniversalClient, channel string) *RedisBus {
	return &RedisBus{
		client:  client,
		channel: channel,
		log:     logging.Component("bus").WithField("channel", channel),
	}
}

func (r *RedisBus) Publish(ctx context.Context, ev shared.Event) error {
	if err := r.client.Publish(ctx, r.channel, ev.String()).Err(); err != nil {
		return pkgerrors.Wrap(err, "redis publish")
	}
	return nil
}

func (r *RedisBus) Listen(ctx context.Context, apply iface.ApplyReplicatedEvent) error {
	ps := r.client.Subscribe(ctx, r.channel)
	defer func(ps *redis.PubSub) {
		_ = ps.Close()
	}(ps)

	// wait for the subscription confirmation so that failures surface here
	if _, err := ps.Receive(ctx); err != nil {
		return pkgerrors.Wrap(err, "redis subscribe")
	}
	r.log.Info("[INFO] Listening for updates on channel")

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return ErrSubscriptionClosed
			}
			dispatch(ctx, r.log, msg.Payload, apply)
		}
	}
}

// dispatch parses one bus payload and applies it. Failures are logged only:
// the bus has no acknowledgement path back to the publisher.
func dispatch(ctx context.Context, log *logrus.Entry, payload string, apply iface.ApplyReplicatedEvent) {
	log.Debug("[DEBUG] Received update: ", payload)
	ev, err := shared.ParseEvent(payload)
	if err != nil {
		log.WithError(err).Warn("[WARN] Unknown update received: ", payload)
		return
	}
	if err := apply(ctx, ev); err != nil {
		log.WithError(err).Error("[ERROR] Failed to apply update: ", payload)
	}
}
