package it600

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shimmeringbee/logwrap"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultPollTimeout  = 30 * time.Second
)

const eventQueueSize = 512

type PollerConfig struct {
	// Interval is the gap between scheduled polls.
	Interval time.Duration
	// Timeout bounds a single poll, a poll that exceeds it counts as a
	// connection failure.
	Timeout time.Duration
}

// Poller drives a gateway on a fixed schedule. One loop goroutine performs
// every poll, so polls never overlap, and an out of band refresh request
// collapses into one pending slot. Device table changes come out of ReadEvent
// as added, updated and removed events.
//
// A failed poll keeps the last good device table being served and marks the
// gateway unreachable until a later poll succeeds. An authentication failure
// stops the schedule entirely, the gateway needs new credentials before
// anything will be attempted again.
type Poller struct {
	gw     Gateway
	cfg    PollerConfig
	logger logwrap.Logger

	events    chan any
	refreshCh chan struct{}
	stopCh    chan struct{}
	stopOnce  sync.Once

	failures  int64
	pollNanos int64

	lock       sync.Mutex
	last       map[string]Device
	lastStatus Status
}

func NewPoller(gw Gateway, cfg PollerConfig, l logwrap.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPollTimeout
	}

	return &Poller{
		gw:     gw,
		cfg:    cfg,
		logger: l,

		events:    make(chan any, eventQueueSize),
		refreshCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),

		last: map[string]Device{},
	}
}

// Start connects and performs the first poll synchronously. Any failure is
// returned to the caller and nothing is ever served or emitted, a gateway
// that can not complete one full poll does not come up. On success the
// initial device population has been emitted and the schedule is running.
func (p *Poller) Start(ctx context.Context) error {
	if err := p.gw.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	pollCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	started := time.Now()
	if err := p.gw.PollStatus(pollCtx); err != nil {
		return fmt.Errorf("initial poll: %w", err)
	}
	atomic.StoreInt64(&p.pollNanos, int64(time.Since(started)))

	p.publishDiff("")
	go p.loop()

	return nil
}

// Stop halts the schedule and releases the gateway session.
func (p *Poller) Stop() error {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})

	return p.gw.Close()
}

// Refresh requests a poll ahead of schedule. Requests made while one is
// already pending or in flight collapse into it.
func (p *Poller) Refresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

// ReadEvent returns the next queued event, waiting until one arrives or the
// context expires.
func (p *Poller) ReadEvent(ctx context.Context) (any, error) {
	select {
	case e := <-p.events:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Poller) Snapshot() map[string]Device {
	return p.gw.Snapshot()
}

func (p *Poller) AllDevices() []Device {
	return p.gw.AllDevices()
}

func (p *Poller) Devices(kind DeviceKind) []Device {
	return p.gw.Devices(kind)
}

func (p *Poller) Device(id string) (Device, bool) {
	return p.gw.Device(id)
}

func (p *Poller) Status() Status {
	return p.gw.Status()
}

func (p *Poller) Host() string {
	return p.gw.Host()
}

func (p *Poller) LastPoll() time.Time {
	return p.gw.LastPoll()
}

// PollFailures is the count of failed polls since start.
func (p *Poller) PollFailures() int64 {
	return atomic.LoadInt64(&p.failures)
}

// PollDuration is the wall time the most recent poll attempt took, whether
// or not it succeeded.
func (p *Poller) PollDuration() time.Duration {
	return time.Duration(atomic.LoadInt64(&p.pollNanos))
}

// SetTemperature forwards to the gateway and, on success, polls out of band
// so the served table reflects the change promptly.
func (p *Poller) SetTemperature(ctx context.Context, id string, temperature float64) error {
	if err := p.gw.SetTemperature(ctx, id, temperature); err != nil {
		return err
	}

	p.Refresh()
	return nil
}

func (p *Poller) SetMode(ctx context.Context, id string, mode string) error {
	if err := p.gw.SetMode(ctx, id, mode); err != nil {
		return err
	}

	p.Refresh()
	return nil
}

func (p *Poller) SetPreset(ctx context.Context, id string, preset string) error {
	if err := p.gw.SetPreset(ctx, id, preset); err != nil {
		return err
	}

	p.Refresh()
	return nil
}

func (p *Poller) loop() {
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-t.C:
		case <-p.refreshCh:
		}

		p.pollOnce()

		if p.gw.Status() == StatusAuthFailed {
			p.logger.LogError(context.Background(), "Gateway authentication failed, polling stopped.",
				logwrap.Datum("host", p.gw.Host()))
			return
		}
	}
}

func (p *Poller) pollOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	started := time.Now()
	err := p.gw.PollStatus(ctx)
	cancel()

	atomic.StoreInt64(&p.pollNanos, int64(time.Since(started)))

	reason := ""

	if err != nil {
		atomic.AddInt64(&p.failures, 1)
		reason = err.Error()

		if !errors.Is(err, ErrAuthentication) {
			p.logger.LogWarn(context.Background(), "Poll failed, serving last good device table.",
				logwrap.Datum("host", p.gw.Host()), logwrap.Err(err))
		}
	}

	p.publishDiff(reason)
}

// publishDiff reconciles the poller's view with the gateway's current table
// and emits the difference, then a status transition if one occurred.
func (p *Poller) publishDiff(reason string) {
	current := p.gw.Snapshot()
	status := p.gw.Status()

	p.lock.Lock()
	previous := p.last
	previousStatus := p.lastStatus
	p.last = current
	p.lastStatus = status
	p.lock.Unlock()

	var ids []string

	for id := range current {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	for _, id := range ids {
		device := current[id]

		if prev, found := previous[id]; !found {
			p.queueEvent(DeviceAdded{Device: device})
		} else if !reflect.DeepEqual(prev, device) {
			p.queueEvent(DeviceUpdated{Device: device})
		}
	}

	ids = ids[:0]

	for id := range previous {
		if _, found := current[id]; !found {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	for _, id := range ids {
		p.queueEvent(DeviceRemoved{Device: previous[id]})
	}

	if status != previousStatus {
		p.queueEvent(StatusChanged{Status: status, Reason: reason})
	}
}

func (p *Poller) queueEvent(e any) {
	select {
	case p.events <- e:
	case <-p.stopCh:
	}
}
