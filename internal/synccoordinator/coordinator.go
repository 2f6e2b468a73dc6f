// Package synccoordinator implements the Per-Inbox Sync Coordinator
// (a.k.a. SyncingManager) described in spec §4.3: a five-state actor
// that supervises one awake inbox's conversation/message streams and
// its one-time bulk sync, with an explicit readiness contract.
//
// The actor is modeled the way the teacher's registry.Cell models a
// per-user mailbox: a single goroutine drains a command channel so
// every transition is serialized, and every suspension point
// (spawning/cancelling child stream tasks) re-validates state before
// acting on it, per spec §4.1/§9's actor guidance.
package synccoordinator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xmtplabs/convos-core/internal/port"
)

// Coordinator is one inbox's sync actor. It is safe to Start/Stop a
// Coordinator repeatedly across its lifetime: Stop always returns to
// idle, and a subsequent Start begins a fresh activation.
type Coordinator struct {
	logger *slog.Logger

	cmdCh   chan any
	closeCh chan struct{}
	once    sync.Once

	mu          sync.RWMutex
	state       State
	client      port.ClientHandle
	subscribers []chan State
}

// New constructs a Coordinator and starts its actor loop. Call Close
// when the coordinator will never be reused (e.g. the owning inbox is
// being forceRemoved), to release the run-loop goroutine.
func New(logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		logger:  logger,
		cmdCh:   make(chan any),
		closeCh: make(chan struct{}),
		state:   Idle,
	}
	go c.run()
	return c
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsSyncReady is true iff the current state is Ready (spec §4.3).
func (c *Coordinator) IsSyncReady() bool {
	return c.State() == Ready
}

// Subscribe returns a channel, buffered to 8, receiving state
// transitions; a transition is dropped for a subscriber whose buffer
// is full. The channel is never closed by the coordinator; callers
// should stop reading from it once done (e.g. on Close).
func (c *Coordinator) Subscribe() <-chan State {
	ch := make(chan State, 8)
	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	ch <- c.state
	c.mu.Unlock()
	return ch
}

// Start begins (or idempotently continues) an activation for client.
// It returns once the transition out of idle/paused/stopping has been
// accepted; it does not wait for Ready.
func (c *Coordinator) Start(ctx context.Context, client port.ClientHandle) error {
	if client == nil {
		return errNilClient
	}
	reply := make(chan error, 1)
	select {
	case c.cmdCh <- startCmd{ctx: ctx, client: client, reply: reply}:
	case <-c.closeCh:
		return errClosed
	}
	return <-reply
}

// Stop does not return until the coordinator has reached idle (spec
// §4.3's stricter-than-signal contract), so callers may safely do
// Stop(); Start() without state overlap.
func (c *Coordinator) Stop() {
	reply := make(chan struct{})
	select {
	case c.cmdCh <- stopCmd{reply: reply}:
	case <-c.closeCh:
		return
	}
	<-reply
}

// Pause cancels the stream tasks, retaining client references, and
// does not re-run bulk sync on the matching Resume.
func (c *Coordinator) Pause() {
	select {
	case c.cmdCh <- pauseCmd{}:
	case <-c.closeCh:
	}
}

// Resume respawns the stream tasks only.
func (c *Coordinator) Resume() {
	select {
	case c.cmdCh <- resumeCmd{}:
	case <-c.closeCh:
	}
}

// OnNetworkChange feeds a NetworkMonitor observation into the actor:
// disconnection triggers Pause, reconnection triggers Resume.
func (c *Coordinator) OnNetworkChange(connected bool) {
	if connected {
		c.Resume()
	} else {
		c.Pause()
	}
}

// Close permanently stops the actor's run loop. Safe to call more
// than once. After Close, Start/Stop/Pause/Resume are no-ops.
func (c *Coordinator) Close() {
	c.once.Do(func() { close(c.closeCh) })
}
