package replication

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

const memSubscriberBuffer = 1024

var _ iface.ReplicationBus = new(MemBus)
var _ iface.PendingBacklog = new(MemBacklog)

// MemBus is an in-process bus for nodes sharing one process. A subscriber
// whose buffer is full misses the message, like a slow pub/sub client.
type MemBus struct {
	sync.Mutex
	subscribers map[chan string]struct{}

	log *logrus.Entry
}

func NewMemBus() *MemBus {
	return &MemBus{
		subscribers: map[chan string]struct{}{},
		log:         logging.Component("bus").WithField("channel", "mem"),
	}
}

func (m *MemBus) Publish(_ context.Context, ev shared.Event) error {
	payload := ev.String()
	m.Lock()
	defer m.Unlock()
	for ch := range m.subscribers {
		select {
		case ch <- payload:
		default:
			m.log.Warn("[WARN] Subscriber buffer full, update dropped: ", payload)
		}
	}
	return nil
}

func (m *MemBus) Listen(ctx context.Context, apply iface.ApplyReplicatedEvent) error {
	ch := m.subscribe()
	defer m.unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-ch:
			dispatch(ctx, m.log, payload, apply)
		}
	}
}

// Subscribers reports the number of active listeners.
func (m *MemBus) Subscribers() int {
	m.Lock()
	defer m.Unlock()
	return len(m.subscribers)
}

func (m *MemBus) subscribe() chan string {
	ch := make(chan string, memSubscriberBuffer)
	m.Lock()
	m.subscribers[ch] = struct{}{}
	m.Unlock()
	return ch
}

func (m *MemBus) unsubscribe(ch chan string) {
	m.Lock()
	delete(m.subscribers, ch)
	m.Unlock()
}

type MemBacklog struct {
	sync.Mutex
	queues map[string][]string
}

func NewMemBacklog() *MemBacklog {
	return &MemBacklog{queues: map[string][]string{}}
}

func (m *MemBacklog) Push(_ context.Context, queue string, ev shared.Event) error {
	m.Lock()
	defer m.Unlock()
	m.queues[queue] = append(m.queues[queue], ev.String())
	return nil
}

func (m *MemBacklog) PushRaw(queue, raw string) {
	m.Lock()
	defer m.Unlock()
	m.queues[queue] = append(m.queues[queue], raw)
}

func (m *MemBacklog) Pop(_ context.Context, queue string) (string, bool, error) {
	m.Lock()
	defer m.Unlock()
	q := m.queues[queue]
	if len(q) == 0 {
		return "", false, nil
	}
	m.queues[queue] = q[1:]
	return q[0], true, nil
}

func (m *MemBacklog) Requeue(_ context.Context, queue, raw string) error {
	m.Lock()
	defer m.Unlock()
	m.queues[queue] = append([]string{raw}, m.queues[queue]...)
	return nil
}

func (m *MemBacklog) Len(queue string) int {
	m.Lock()
	defer m.Unlock()
	return len(m.queues[queue])
}
