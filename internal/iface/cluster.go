package iface

import (
	"context"
	"errors"
	"strings"

	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
)

type ReplicatorRole int

const (
	RolePrimary ReplicatorRole = iota + 1
	RoleSecondary
)

var ErrUnknownRole = errors.New("unknown role")

func ParseRole(s string) (ReplicatorRole, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary":
		return RolePrimary, nil
	case "secondary", "standby":
		return RoleSecondary, nil
	default:
		return 0, ErrUnknownRole
	}
}

func (r ReplicatorRole) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Peer returns the other role of the pair.
func (r ReplicatorRole) Peer() ReplicatorRole {
	if r == RolePrimary {
		return RoleSecondary
	}
	return RolePrimary
}

type ApplyReplicatedEvent func(ctx context.Context, ev shared.Event) error

// ReplicationBus carries change notifications between the two roles.
// Delivery is fire-and-forget.
type ReplicationBus interface {
	Publish(ctx context.Context, ev shared.Event) error
	// Listen blocks, delivering every received event to apply, until ctx is
	// done or the subscription breaks.
	Listen(ctx context.Context, apply ApplyReplicatedEvent) error
}

// PendingBacklog is a durable FIFO of events per queue name.
type PendingBacklog interface {
	Push(ctx context.Context, queue string, ev shared.Event) error
	// Pop returns the oldest entry of the queue. found is false when the queue is empty.
	Pop(ctx context.Context, queue string) (raw string, found bool, err error)
	// Requeue puts a popped entry back as the oldest one of the queue.
	Requeue(ctx context.Context, queue, raw string) error
}
