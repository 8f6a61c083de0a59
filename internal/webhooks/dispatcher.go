// Package webhooks delivers event notifications to subscriber endpoints.
// Dispatch is fire-and-forget: events are queued on a bounded channel and
// delivered by a background worker, so a slow or dead endpoint never touches
// request latency. There is no retry; a failed delivery is logged and
// dropped.
package webhooks

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhortlabs/zhort/internal/models"
)

// maxConcurrentDeliveries bounds the endpoint fan-out for a single event.
const maxConcurrentDeliveries = 16

// timestampFormat is RFC 3339 with fixed millisecond precision.
const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

type event struct {
	ownerID int64
	name    string
	data    any
	at      time.Time
}

type payload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

type Dispatcher struct {
	ch     chan event
	stop   chan struct{}
	done   chan struct{}
	db     *sql.DB
	client *http.Client
	log    *zap.Logger
	now    func() time.Time
}

func NewDispatcher(db *sql.DB, log *zap.Logger, queueSize int, timeout time.Duration) *Dispatcher {
	d := &Dispatcher{
		ch:     make(chan event, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		db:     db,
		client: &http.Client{Timeout: timeout},
		log:    log,
		now:    time.Now,
	}
	go d.run()
	return d
}

// Dispatch queues an event for the owner's subscribed endpoints. Non-blocking;
// drops the event if the queue is full.
func (d *Dispatcher) Dispatch(ownerID int64, name string, data any) {
	ev := event{ownerID: ownerID, name: name, data: data, at: d.now().UTC()}
	select {
	case d.ch <- ev:
	default:
		d.log.Warn("webhook queue full, event dropped",
			zap.String("event", name), zap.Int64("owner_id", ownerID))
	}
}

// Shutdown delivers queued events and returns.
func (d *Dispatcher) Shutdown() {
	close(d.stop)
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case ev := <-d.ch:
			d.deliver(ev)
		case <-d.stop:
			for {
				select {
				case ev := <-d.ch:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev event) {
	hooks, err := models.WebhooksForEvent(d.db, ev.ownerID, ev.name)
	if err != nil {
		d.log.Warn("webhook lookup failed", zap.String("event", ev.name), zap.Error(err))
		return
	}
	if len(hooks) == 0 {
		return
	}

	body, err := json.Marshal(payload{
		Event:     ev.name,
		Timestamp: ev.at.Format(timestampFormat),
		Data:      ev.data,
	})
	if err != nil {
		d.log.Warn("webhook payload marshal failed", zap.String("event", ev.name), zap.Error(err))
		return
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentDeliveries)
	for _, hook := range hooks {
		hook := hook
		g.Go(func() error {
			if err := d.post(hook, ev.name, body); err != nil {
				d.log.Warn("webhook delivery failed",
					zap.Int64("webhook_id", hook.ID),
					zap.String("url", hook.URL),
					zap.String("event", ev.name),
					zap.Error(err))
				return nil
			}
			if err := models.TouchWebhook(d.db, hook.ID, d.now().UTC()); err != nil {
				d.log.Warn("webhook touch failed", zap.Int64("webhook_id", hook.ID), zap.Error(err))
			}
			return nil
		})
	}
	g.Wait()
}

func (d *Dispatcher) post(hook models.Webhook, eventName string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Zhort-Event", eventName)
	req.Header.Set("X-Zhort-Signature", Sign(hook.Secret, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}
