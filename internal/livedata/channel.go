package livedata

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nutricomm/kebun-gizi/internal/metrics"
	"github.com/nutricomm/kebun-gizi/internal/sensor"
)

// Channel is a single-use live data source. Create one with New, start it
// once, and stop it through the returned Handle.
type Channel struct {
	opts      Options
	sessionID string
	dial      dialFunc

	// Fixed by Start.
	onReading func(sensor.Reading)
	endpoints []string
	pollURI   string

	mu          sync.Mutex
	started     bool
	state       State
	endpoint    string
	polling     bool
	pollCancel  context.CancelFunc
	fallback    *time.Timer
	cancel      context.CancelFunc
	delivered   uint64
	discarded   uint64
	lastReading time.Time

	// deliverMu serializes consumer callbacks; stopped is checked under it.
	// inCallback is set while deliverMu is held for a callback.
	deliverMu  sync.Mutex
	inCallback atomic.Bool
	stopped    atomic.Bool
	settled    atomic.Bool // initial load resolved, either way

	wg   sync.WaitGroup
	done chan struct{}
}

// New creates an idle channel.
func New(opts Options) *Channel {
	c := &Channel{
		opts:      opts.withDefaults(),
		sessionID: uuid.NewString(),
		done:      make(chan struct{}),
	}
	c.dial = c.dialPush
	return c
}

// Handle controls a started channel.
type Handle struct {
	c    *Channel
	once sync.Once
}

// Start validates the endpoints and begins acquiring data in the background.
// Push candidates are tried in order; pollURI is the HTTP fallback. An empty
// endpoint list means polling only.
//
// onReading is called from the channel's goroutines, one call at a time. It
// may call Stop or Status but must not call Refresh.
func (c *Channel) Start(onReading func(sensor.Reading), endpoints []string, pollURI string) (*Handle, error) {
	if onReading == nil {
		return nil, errors.New("live data: nil reading callback")
	}
	for _, ep := range endpoints {
		if _, err := pushKind(ep); err != nil {
			return nil, err
		}
	}
	if err := validatePollURI(pollURI); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	c.started = true
	c.onReading = onReading
	c.endpoints = append([]string(nil), endpoints...)
	c.pollURI = pollURI
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	c.opts.Logger.Info("Live data channel starting",
		"session", c.sessionID, "push_candidates", len(endpoints), "poll", pollURI)

	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
	go func() {
		c.wg.Wait()
		close(c.done)
	}()

	return &Handle{c: c}, nil
}

// Stop cancels the channel. It is idempotent and synchronous: once it
// returns no new consumer callback starts. A delivery that has already
// passed its stopped check is either waited for or, when a callback is
// running (possibly the caller itself), left to finish.
// Sockets and timers are released in the background; Done reports when that
// has finished.
func (h *Handle) Stop() {
	h.once.Do(h.c.stop)
}

// Refresh fetches the latest reading over HTTP right away and delivers it,
// without changing the transport state.
func (h *Handle) Refresh(ctx context.Context) error {
	return h.c.refresh(ctx)
}

// Done is closed once every goroutine of the channel has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.c.done
}

// SessionID identifies this channel instance in logs.
func (c *Channel) SessionID() string {
	return c.sessionID
}

// Status returns a snapshot of the channel.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		SessionID:     c.sessionID,
		State:         c.state,
		Endpoint:      c.endpoint,
		Polling:       c.polling,
		Delivered:     c.delivered,
		Discarded:     c.discarded,
		LastReadingAt: c.lastReading,
	}
}

// --------------------------------------------------------------------------
// State machine
// --------------------------------------------------------------------------

// run drives push candidate cycling. It returns when ctx is cancelled or
// when every candidate has failed in a row, leaving the poll loop running.
func (c *Channel) run(ctx context.Context) {
	defer c.disarmFallback()

	n := len(c.endpoints)
	if n == 0 {
		c.setState(StatePollingActive, "")
		c.startPolling(ctx)
		return
	}

	i, failures := 0, 0
	for {
		ep := c.endpoints[i]
		c.setState(StateConnectingPush, ep)

		conn, err := c.dial(ctx, ep)
		if ctx.Err() != nil {
			if conn != nil {
				conn.close()
			}
			return
		}
		if err != nil {
			metrics.PushConnect(false)
			failures++
			c.opts.Logger.Debug("Push connect failed", "endpoint", ep, "error", err)
			if failures >= n {
				c.exhausted(ctx)
				return
			}
			i = (i + 1) % n
			if !sleepCtx(ctx, c.opts.RetryDelay) {
				return
			}
			continue
		}

		metrics.PushConnect(true)
		c.setState(StatePushActive, ep)
		c.opts.Logger.Info("Push transport connected", "endpoint", ep)

		kind, _ := pushKind(ep)
		got, err := c.session(ctx, conn, kind)
		if ctx.Err() != nil {
			return
		}
		// A session that never produced a reading counts as a failed
		// candidate, so a peer that accepts and hangs up cannot hold off polling.
		if got {
			failures = 0
		} else {
			failures++
		}
		if failures >= n {
			c.exhausted(ctx)
			return
		}
		i = (i + 1) % n
		c.opts.Logger.Warn("Push transport disconnected, reconnecting",
			"endpoint", ep, "next", c.endpoints[i], "error", err, "retry_in", c.opts.RetryDelay)

		c.setState(StateConnectingPush, c.endpoints[i])
		c.armFallback(ctx)
		if !sleepCtx(ctx, c.opts.RetryDelay) {
			return
		}
	}
}

// exhausted switches to polling for the rest of the channel's life.
func (c *Channel) exhausted(ctx context.Context) {
	c.opts.Logger.Warn("Push candidates exhausted, polling",
		"candidates", len(c.endpoints), "poll", c.pollURI)
	c.disarmFallback()
	c.setState(StatePollingActive, "")
	c.startPolling(ctx)
}

// session forwards frames from conn until it ends. It reports whether at
// least one reading was delivered. The first one cancels fallback polling.
func (c *Channel) session(ctx context.Context, conn pushConn, kind transportKind) (bool, error) {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-sctx.Done()
		conn.close()
	}()

	transport := kind.String()
	got := false
	for {
		data, err := conn.next(sctx)
		if err != nil {
			return got, err
		}
		r, err := sensor.Normalize(data, time.Now())
		if err != nil {
			c.opts.Logger.Debug("Discarding malformed frame", "transport", transport, "error", err)
			metrics.FrameDiscarded(transport)
			c.mu.Lock()
			c.discarded++
			c.mu.Unlock()
			continue
		}
		if !got {
			got = true
			c.disarmFallback()
			c.stopPolling()
		}
		c.deliver(r, transport)
	}
}

func (c *Channel) setState(s State, endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped.Load() {
		return
	}
	c.state = s
	c.endpoint = endpoint
	metrics.TransportState(s.String())
}

// armFallback starts polling after FallbackDelay unless push comes back first.
func (c *Channel) armFallback(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil || c.fallback != nil || c.pollCancel != nil {
		return
	}
	var t *time.Timer
	t = time.AfterFunc(c.opts.FallbackDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.fallback != t {
			return
		}
		c.fallback = nil
		c.opts.Logger.Info("Push outage exceeded fallback delay", "delay", c.opts.FallbackDelay)
		c.startPollingLocked(ctx)
	})
	c.fallback = t
}

func (c *Channel) disarmFallback() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fallback != nil {
		c.fallback.Stop()
		c.fallback = nil
	}
}

// --------------------------------------------------------------------------
// Delivery
// --------------------------------------------------------------------------

// deliver hands r to the consumer unless the channel is stopped.
func (c *Channel) deliver(r sensor.Reading, transport string) bool {
	c.deliverMu.Lock()
	c.inCallback.Store(true)
	defer func() {
		c.inCallback.Store(false)
		c.deliverMu.Unlock()
	}()
	if c.stopped.Load() {
		return false
	}
	c.onReading(r)
	c.settled.Store(true)

	c.mu.Lock()
	c.delivered++
	c.lastReading = time.Now()
	c.mu.Unlock()
	metrics.ReadingDelivered(transport)
	return true
}

// initialFailure reports a poll failure that happened before any reading
// was delivered. Polling only runs once push has failed, so this is the
// "nothing works" case. Reported at most once.
func (c *Channel) initialFailure(err error) {
	if !c.settled.CompareAndSwap(false, true) {
		return
	}
	nds := &NoDataSourceError{Endpoints: c.endpoints, PollURI: c.pollURI, Err: err}

	c.deliverMu.Lock()
	c.inCallback.Store(true)
	defer func() {
		c.inCallback.Store(false)
		c.deliverMu.Unlock()
	}()
	if c.stopped.Load() {
		return
	}
	c.opts.Logger.Error("Live data unavailable", "session", c.sessionID, "error", nds)
	if c.opts.OnError != nil {
		c.opts.OnError(nds)
	}
}

func (c *Channel) refresh(ctx context.Context) error {
	if c.stopped.Load() {
		return ErrStopped
	}
	r, err := c.fetch(ctx)
	if err != nil {
		return err
	}
	if !c.deliver(r, transportPoll) {
		return ErrStopped
	}
	return nil
}

func (c *Channel) stop() {
	c.stopped.Store(true)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	if c.fallback != nil {
		c.fallback.Stop()
		c.fallback = nil
	}
	c.pollCancel = nil
	c.polling = false
	c.state = StateStopped
	c.endpoint = ""
	metrics.TransportState(StateStopped.String())
	c.mu.Unlock()

	// Wait out a delivery that passed its stopped check before the store
	// above. Skipped when the callback itself is stopping the channel.
	if !c.inCallback.Load() {
		c.deliverMu.Lock()
		c.deliverMu.Unlock()
	}

	c.opts.Logger.Info("Live data channel stopped",
		"session", c.sessionID, "delivered", c.Status().Delivered)
}

// sleepCtx waits d or until ctx is done. Returns false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
