package synccoordinator

import (
	"context"
	"errors"
	"sync"

	"github.com/xmtplabs/convos-core/internal/port"
)

var (
	errNilClient = errors.New("synccoordinator: client handle is nil")
	errClosed    = errors.New("synccoordinator: coordinator closed")
)

type startCmd struct {
	ctx    context.Context
	client port.ClientHandle
	reply  chan error
}

type stopCmd struct {
	reply chan struct{}
}

type pauseCmd struct{}
type resumeCmd struct{}

// internal events, emitted by child goroutines back onto the actor's
// own mailbox so readiness transitions stay serialized with external
// commands.
type convSubscribedEvt struct{}
type msgSubscribedEvt struct{}
type bulkSyncDoneEvt struct{ err error }
type childrenStoppedEvt struct{}

// activation tracks the state of one starting/ready/paused cycle: the
// child tasks backing it and what readiness still needs to observe.
type activation struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup

	convSubscribed bool
	msgSubscribed  bool
	awaitBulkSync  bool

	pendingPause bool
}

func (c *Coordinator) run() {
	var act *activation

	for {
		select {
		case <-c.closeCh:
			if act != nil {
				act.cancel()
				act.wg.Wait()
			}
			return

		case raw := <-c.cmdCh:
			switch cmd := raw.(type) {
			case startCmd:
				act = c.handleStart(act, cmd)
			case stopCmd:
				act = c.handleStop(act)
				close(cmd.reply)
			case pauseCmd:
				act = c.handlePause(act)
			case resumeCmd:
				act = c.handleResume(act)
			case convSubscribedEvt:
				act = c.handleConvSubscribed(act)
			case msgSubscribedEvt:
				act = c.handleMsgSubscribed(act)
			case bulkSyncDoneEvt:
				act = c.handleBulkSyncDone(act, cmd.err)
			case childrenStoppedEvt:
				// Nothing sends this event; handleStop waits on act.wg
				// directly, so no state change is needed here.
			}
		}
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	subs := append([]chan State(nil), c.subscribers...)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (c *Coordinator) setClient(client port.ClientHandle) {
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
}

// stopActivation cancels the activation's children and blocks until
// they finish. Safe to call with act == nil.
func stopActivation(act *activation) {
	if act == nil {
		return
	}
	act.cancel()
	act.wg.Wait()
}

func (c *Coordinator) handleStart(act *activation, cmd startCmd) *activation {
	cur := c.State()

	switch cur {
	case Idle:
		next := c.beginActivation(cmd.ctx, cmd.client, true)
		cmd.reply <- nil
		return next

	case Starting, Ready:
		c.mu.RLock()
		sameClient := c.client != nil && cmd.client.ClientId() == c.client.ClientId()
		c.mu.RUnlock()
		if sameClient {
			cmd.reply <- nil
			return act
		}
		// stopping -> starting: tear down the current activation, then
		// begin a fresh one for the new client.
		c.setState(Stopping)
		stopActivation(act)
		c.setState(Idle)
		next := c.beginActivation(cmd.ctx, cmd.client, true)
		cmd.reply <- nil
		return next

	case Paused:
		c.setState(Stopping)
		stopActivation(act)
		c.setState(Idle)
		next := c.beginActivation(cmd.ctx, cmd.client, true)
		cmd.reply <- nil
		return next

	default: // Stopping: finish tearing down synchronously, then start.
		stopActivation(act)
		c.setState(Idle)
		next := c.beginActivation(cmd.ctx, cmd.client, true)
		cmd.reply <- nil
		return next
	}
}

func (c *Coordinator) beginActivation(parent context.Context, client port.ClientHandle, withBulkSync bool) *activation {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	act := &activation{cancel: cancel, awaitBulkSync: withBulkSync}
	c.setClient(client)
	c.setState(Starting)

	act.wg.Add(2)
	go c.runStream(ctx, act, client.StreamConversations, true)
	go c.runStream(ctx, act, client.StreamMessages, false)

	if withBulkSync {
		act.wg.Add(1)
		go c.runBulkSync(ctx, act, client)
	}

	return act
}

type streamFn func(ctx context.Context, onSubscribed func()) error

func (c *Coordinator) runStream(ctx context.Context, act *activation, stream streamFn, isConversation bool) {
	defer act.wg.Done()

	onSubscribed := func() {
		if isConversation {
			c.send(ctx, convSubscribedEvt{})
		} else {
			c.send(ctx, msgSubscribedEvt{})
		}
	}

	// Stream errors are retried internally with backoff and never
	// propagate to the state machine (spec §4.3 failure model); the
	// loop exits when ctx is cancelled or the stream returns nil.
	backoff := newBackoff()
	for {
		err := stream(ctx, onSubscribed)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			return
		}
		c.logger.Warn("SYNC_STREAM_RETRY", "err", err)
		if !backoff.wait(ctx) {
			return
		}
	}
}

func (c *Coordinator) runBulkSync(ctx context.Context, act *activation, client port.ClientHandle) {
	defer act.wg.Done()
	err := client.SyncAllConversations(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.logger.Warn("BULK_SYNC_FAILED", "err", err)
	}
	c.send(ctx, bulkSyncDoneEvt{err: err})
}

// send delivers ev to the run loop, giving up once the activation's
// ctx is cancelled so a child never blocks the loop's wait in
// stopActivation or applyPause.
func (c *Coordinator) send(ctx context.Context, ev any) {
	select {
	case c.cmdCh <- ev:
	case <-ctx.Done():
	case <-c.closeCh:
	}
}

func (c *Coordinator) handleConvSubscribed(act *activation) *activation {
	if act == nil || c.State() != Starting {
		return act
	}
	act.convSubscribed = true
	return c.maybeBecomeReady(act)
}

func (c *Coordinator) handleMsgSubscribed(act *activation) *activation {
	if act == nil || c.State() != Starting {
		return act
	}
	act.msgSubscribed = true
	return c.maybeBecomeReady(act)
}

func (c *Coordinator) handleBulkSyncDone(act *activation, err error) *activation {
	if act == nil || c.State() != Starting {
		return act
	}
	act.awaitBulkSync = false
	return c.maybeBecomeReady(act)
}

func (c *Coordinator) maybeBecomeReady(act *activation) *activation {
	if !act.convSubscribed || !act.msgSubscribed || act.awaitBulkSync {
		return act
	}

	c.setState(Ready)
	if act.pendingPause {
		act.pendingPause = false
		return c.applyPause(act)
	}
	return act
}

func (c *Coordinator) handlePause(act *activation) *activation {
	switch c.State() {
	case Starting:
		if act != nil {
			act.pendingPause = true
		}
		return act
	case Ready:
		return c.applyPause(act)
	default:
		return act
	}
}

// applyPause cancels only the stream children, keeping the client
// handle and the activation's bulk-sync-complete bookkeeping intact,
// then replaces act with a paused placeholder that Resume respawns
// streams into.
func (c *Coordinator) applyPause(act *activation) *activation {
	if act != nil {
		act.cancel()
		act.wg.Wait()
	}
	c.setState(Paused)
	return &activation{cancel: func() {}, awaitBulkSync: false}
}

func (c *Coordinator) handleResume(act *activation) *activation {
	switch c.State() {
	case Starting:
		if act != nil {
			act.pendingPause = false
		}
		return act
	case Paused:
		c.mu.RLock()
		client := c.client
		c.mu.RUnlock()
		if client == nil {
			return act
		}
		// Resume respawns streams only; bulk sync never re-runs.
		return c.beginActivation(context.Background(), client, false)
	default:
		return act
	}
}

func (c *Coordinator) handleStop(act *activation) *activation {
	if c.State() == Idle {
		return act
	}
	c.setState(Stopping)
	stopActivation(act)
	c.setState(Idle)
	c.setClient(nil)
	return nil
}
