package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

// ReplicationStrategy is how an accepted write leaves the node.
type ReplicationStrategy interface {
	Replicate(ctx context.Context, ev shared.Event) error
}

// PublishAndEnqueue publishes the event for live subscribers and pushes it to
// the backlog of the accepting role for replay after an outage. Both roles use
// it, so a write accepted by either one is durably queued.
type PublishAndEnqueue struct {
	Bus     iface.ReplicationBus
	Backlog iface.PendingBacklog
	Queue   string

	log *logrus.Entry
}

func NewPublishAndEnqueue(bus iface.ReplicationBus, backlog iface.PendingBacklog, queue string) *PublishAndEnqueue {
	return &PublishAndEnqueue{
		Bus:     bus,
		Backlog: backlog,
		Queue:   queue,
		log:     logging.Component("replicate").WithField("queue", queue),
	}
}

func (p *PublishAndEnqueue) Replicate(ctx context.Context, ev shared.Event) error {
	var publishErr, pushErr error
	if p.Bus != nil {
		if publishErr = p.Bus.Publish(ctx, ev); publishErr != nil {
			p.log.WithError(publishErr).Warn("[WARN] Publish update failed: ", ev.String())
		}
	}
	if p.Backlog != nil {
		if pushErr = p.Backlog.Push(ctx, p.Queue, ev); pushErr != nil {
			p.log.WithError(pushErr).Error("[ERROR] Store pending update failed: ", ev.String())
		}
	}
	return errors.Join(publishErr, pushErr)
}

type noReplication struct{}

func (noReplication) Replicate(context.Context, shared.Event) error {
	return nil
}
