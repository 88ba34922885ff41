package replication

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

const defaultResubscribeDelay = 1 * time.Second

// Listener keeps one subscription to the bus open for the lifetime of the
// node and hands every event to Apply.
type Listener struct {
	Bus   iface.ReplicationBus
	Apply iface.ApplyReplicatedEvent

	ResubscribeDelay time.Duration

	log    *logrus.Entry
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewListener(bus iface.ReplicationBus, apply iface.ApplyReplicatedEvent) *Listener {
	return &Listener{
		Bus:              bus,
		Apply:            apply,
		ResubscribeDelay: defaultResubscribeDelay,
		log:              logging.Component("listener"),
	}
}

func (l *Listener) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.run(ctx)
	}()
}

func (l *Listener) run(ctx context.Context) {
	for {
		err := l.Bus.Listen(ctx, l.Apply)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			l.log.WithError(err).Warn("[WARN] Update subscription broken, resubscribing")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(l.ResubscribeDelay):
		}
	}
}

func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}
