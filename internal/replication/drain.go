package replication

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

// Drain pops the queue oldest first until it is empty and applies each
// entry. Unparsable entries are logged and dropped. A pop failure aborts the
// drain, and so does an apply failure after the entry is put back at the head
// of the queue for the next drain. It returns the number of applied entries.
func Drain(ctx context.Context, backlog iface.PendingBacklog, queue string, apply iface.ApplyReplicatedEvent) (int, error) {
	log := logging.Component("drain").WithField("queue", queue)
	applied := 0
	for {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		raw, found, err := backlog.Pop(ctx, queue)
		if err != nil {
			log.WithError(err).Error("[ERROR] Failed to read pending updates")
			return applied, err
		}
		if !found {
			return applied, nil
		}
		ev, err := shared.ParseEvent(raw)
		if err != nil {
			log.WithError(err).Warn("[WARN] Unknown action in pending update: ", raw)
			continue
		}
		if err := apply(ctx, ev); err != nil {
			log.WithError(err).Error("[ERROR] Failed to process pending update: ", raw)
			if rerr := backlog.Requeue(context.WithoutCancel(ctx), queue, raw); rerr != nil {
				log.WithError(rerr).Error("[ERROR] Failed to requeue pending update: ", raw)
				return applied, errors.Wrap(rerr, "requeue pending update")
			}
			return applied, errors.Wrap(err, "apply pending update")
		}
		applied++
	}
}

// Drainer repeats Drain on a fixed interval.
type Drainer struct {
	Backlog  iface.PendingBacklog
	Queue    string
	Apply    iface.ApplyReplicatedEvent
	Interval time.Duration

	// OnDrained is called after every drain attempt, mainly for metrics.
	OnDrained func(applied int, err error)

	log    *logrus.Entry
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDrainer(backlog iface.PendingBacklog, queue string, apply iface.ApplyReplicatedEvent, interval time.Duration) *Drainer {
	return &Drainer{
		Backlog:  backlog,
		Queue:    queue,
		Apply:    apply,
		Interval: interval,
		log:      logging.Component("drain").WithField("queue", queue),
	}
}

// DrainOnce runs a single drain and reports it.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	d.log.Info("[INFO] Checking for pending updates")
	n, err := Drain(ctx, d.Backlog, d.Queue, d.Apply)
	if n > 0 {
		d.log.Info("[INFO] Processed pending updates: ", n)
	}
	if d.OnDrained != nil {
		d.OnDrained(n, err)
	}
	return n, err
}

func (d *Drainer) Start(ctx context.Context) {
	if d.Interval <= 0 {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = d.DrainOnce(ctx)
			}
		}
	}()
}

func (d *Drainer) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
}
