// Package syncer implements the cross-modal synchronization coordinator.
//
// The coordinator executes cross-channel exchanges (state, intent-combine,
// context, feedback) and broadcasts results to all non-originating
// channels in registration order. Partial delivery failures are recorded
// per channel without aborting delivery to the remaining channels.
package syncer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/tandem/monitor"
	"github.com/pithecene-io/tandem/registry"
	"github.com/pithecene-io/tandem/types"
)

// Receiver delivers a sync payload into one channel's surface.
// Implemented by the surrounding UI layer. A nil error acknowledges
// receipt.
type Receiver interface {
	Deliver(ch types.Channel, kind types.SyncKind, payload any) error
}

// NopReceiver acknowledges every delivery.
type NopReceiver struct{}

// Deliver implements Receiver.
func (NopReceiver) Deliver(types.Channel, types.SyncKind, any) error { return nil }

// Interpreter consumes combined intents for semantic interpretation.
// External collaborator; the engine only merges, never interprets.
type Interpreter interface {
	Interpret(intent types.CombinedIntent) error
}

// NopInterpreter discards combined intents.
type NopInterpreter struct{}

// Interpret implements Interpreter.
func (NopInterpreter) Interpret(types.CombinedIntent) error { return nil }

// Coordinator executes synchronization exchanges.
// Thread-safe; sync records are retained for the session and handed out
// as copies only.
type Coordinator struct {
	reg         *registry.Registry
	receiver    Receiver
	interpreter Interpreter
	perf        *monitor.Monitor
	now         func() time.Time
	newID       func() string

	mu    sync.Mutex
	syncs map[string]*types.CrossModalSync
	order []string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the coordinator clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithIDFunc overrides sync id generation. Used in tests.
func WithIDFunc(newID func() string) Option {
	return func(c *Coordinator) {
		c.newID = newID
	}
}

// New creates a coordinator. Nil receiver/interpreter fall back to the
// no-op implementations; a nil monitor skips sync_duration emission.
func New(reg *registry.Registry, receiver Receiver, interpreter Interpreter, perf *monitor.Monitor, opts ...Option) *Coordinator {
	if receiver == nil {
		receiver = NopReceiver{}
	}
	if interpreter == nil {
		interpreter = NopInterpreter{}
	}
	c := &Coordinator{
		reg:         reg,
		receiver:    receiver,
		interpreter: interpreter,
		perf:        perf,
		now:         time.Now,
		newID:       uuid.NewString,
		syncs:       make(map[string]*types.CrossModalSync),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sync executes one exchange over the given channels and returns the
// sync id. The sync is complete once every targeted channel has
// acknowledged; per-channel failures are recorded without aborting
// delivery to the rest.
func (c *Coordinator) Sync(channels []types.Channel, kind types.SyncKind, payload any) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("sync: unknown kind %q", kind)
	}
	if len(channels) == 0 {
		return "", fmt.Errorf("sync %s: no channels", kind)
	}

	record := &types.CrossModalSync{
		ID:        c.newID(),
		Channels:  append([]types.Channel(nil), channels...),
		Kind:      kind,
		Payload:   payload,
		StartedAt: c.now(),
	}

	switch kind {
	case types.SyncState:
		c.syncState(record)
	case types.SyncIntentCombine:
		c.syncIntentCombine(record)
	case types.SyncContext, types.SyncFeedback:
		c.deliverAll(record, nil)
	}

	c.finish(record)
	return record.ID, nil
}

// Broadcast delivers a payload to every active channel except the
// excluded ones, in registration order. Returns the sync id.
func (c *Coordinator) Broadcast(kind types.SyncKind, payload any, exclude []types.Channel) (string, error) {
	if kind != types.SyncContext && kind != types.SyncFeedback {
		return "", fmt.Errorf("broadcast: kind %q is not broadcastable", kind)
	}

	excluded := make(map[types.Channel]bool, len(exclude))
	for _, ch := range exclude {
		excluded[ch] = true
	}

	var targets []types.Channel
	for _, ch := range c.reg.Snapshot().ActiveChannels() {
		if !excluded[ch] {
			targets = append(targets, ch)
		}
	}
	if len(targets) == 0 {
		return "", fmt.Errorf("broadcast %s: no eligible channels", kind)
	}

	record := &types.CrossModalSync{
		ID:        c.newID(),
		Channels:  targets,
		Kind:      kind,
		Payload:   payload,
		StartedAt: c.now(),
	}
	c.deliverAll(record, nil)
	c.finish(record)
	return record.ID, nil
}

// CombineIntents implements the resolver's Combiner boundary: an
// intent-combine sync over the conflicting channels.
func (c *Coordinator) CombineIntents(channels []types.Channel) (string, error) {
	return c.Sync(channels, types.SyncIntentCombine, nil)
}

// Abort cancels an in-flight or finished sync: complete drops to false
// and an explicit aborted error is recorded, leaving no ambiguous state.
func (c *Coordinator) Abort(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.syncs[id]
	if !ok {
		return fmt.Errorf("abort: sync %q not found", id)
	}
	record.Complete = false
	record.Errors = append(record.Errors, "aborted")
	return nil
}

// Get returns a copy of the sync record with the given id.
func (c *Coordinator) Get(id string) (types.CrossModalSync, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, ok := c.syncs[id]
	if !ok {
		return types.CrossModalSync{}, false
	}
	return *record, true
}

// All returns copies of every sync record in creation order.
func (c *Coordinator) All() []types.CrossModalSync {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.CrossModalSync, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.syncs[id])
	}
	return out
}

// syncState stamps every targeted channel with the payload, then
// delivers the stamp notification.
func (c *Coordinator) syncState(record *types.CrossModalSync) {
	if err := c.reg.StampState(record.Channels, record.Payload, c.now()); err != nil {
		record.Errors = append(record.Errors, fmt.Sprintf("stamp: %v", err))
	}
	c.deliverAll(record, nil)
}

// syncIntentCombine merges each channel's confidence and pending input
// into one combined intent and hands it to the interpreter.
func (c *Coordinator) syncIntentCombine(record *types.CrossModalSync) {
	snap := c.reg.Snapshot()

	intent := types.CombinedIntent{
		Channels:   record.Channels,
		Inputs:     make(map[types.Channel]any, len(record.Channels)),
		CombinedAt: c.now(),
	}
	var sum float64
	var counted int
	for _, ch := range record.Channels {
		state, ok := snap.State(ch)
		if !ok {
			record.Errors = append(record.Errors, fmt.Sprintf("combine: unknown channel %s", ch))
			continue
		}
		intent.Inputs[ch] = state.PendingInput
		sum += state.Confidence
		counted++
	}
	if counted > 0 {
		intent.Confidence = sum / float64(counted)
	}

	if err := c.interpreter.Interpret(intent); err != nil {
		record.Errors = append(record.Errors, fmt.Sprintf("interpret: %v", err))
	}
	c.deliverAll(record, &intent)
}

// deliverAll delivers to every targeted channel in order. payload
// overrides the record payload when non-nil (combined intents).
func (c *Coordinator) deliverAll(record *types.CrossModalSync, override *types.CombinedIntent) {
	payload := record.Payload
	if override != nil {
		payload = *override
	}
	for _, ch := range record.Channels {
		delivery := types.SyncDelivery{Channel: ch}
		if err := c.receiver.Deliver(ch, record.Kind, payload); err != nil {
			delivery.Error = err.Error()
			record.Errors = append(record.Errors, fmt.Sprintf("%s: %v", ch, err))
		} else {
			delivery.Acknowledged = true
		}
		record.Deliveries = append(record.Deliveries, delivery)
	}
}

// finish computes completion, records the sync, and emits its duration.
func (c *Coordinator) finish(record *types.CrossModalSync) {
	record.Duration = c.now().Sub(record.StartedAt)

	complete := len(record.Deliveries) == len(record.Channels)
	for _, d := range record.Deliveries {
		if !d.Acknowledged {
			complete = false
			break
		}
	}
	record.Complete = complete

	c.mu.Lock()
	c.syncs[record.ID] = record
	c.order = append(c.order, record.ID)
	c.mu.Unlock()

	c.perf.RecordSyncDuration(record.Kind, record.Duration)
}
