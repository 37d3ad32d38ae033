package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/kasku/chat-gateway/internal/config"
)

type Options struct {
	Policy           Policy
	LaunchRetries    int
	LaunchRetryStep  time.Duration
	SendRate         rate.Limit
	SendBurst        int
	InboundTimeout   time.Duration
	FirstConnectWait time.Duration
	ReconnectWait    time.Duration
	// QREncoder turns the raw pairing payload into the published artifact.
	// Defaults to a PNG data URI.
	QREncoder        func(string) string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Policy: Policy{
			AutoRecover: cfg.AutoRecover,
			MaxAttempts: cfg.MaxReconnectAttempts,
			Transport:   Backoff{Min: cfg.ReconnectMin(), Max: cfg.ReconnectMax()},
			Auth:        Backoff{Min: cfg.AuthRetryMin(), Max: cfg.AuthRetryMax()},
		},
		LaunchRetries:    cfg.LaunchRetries,
		LaunchRetryStep:  cfg.LaunchRetryStep(),
		SendRate:         rate.Limit(cfg.SendRatePerSec),
		SendBurst:        1,
		InboundTimeout:   config.InboundHandleTimeout,
		FirstConnectWait: config.FirstConnectWait,
		ReconnectWait:    config.ReconnectWait,
	}
}

type stopper interface {
	Stop() bool
}

type session struct {
	key IdentityKey

	mu         sync.Mutex
	conn       Connection
	client     Client
	gen        uint64
	timer      stopper
	waiters    []chan Connection
	subscribed bool
	removed    bool
	limiter    *rate.Limiter
}

func (s *session) snapshot() Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// settled reports whether a waiter has nothing more to wait for.
func (s *session) settledLocked() bool {
	switch s.conn.State {
	case StateQRIssued, StateReady:
		return true
	case StateDisconnected:
		return !s.conn.RetryPending
	}
	return false
}

func (s *session) dropWaiter(ch chan Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.waiters {
		if w == ch {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			return
		}
	}
}

// Controller owns one automation client per registry entry and drives its lifecycle.
type Controller struct {
	registry *Registry
	factory  ClientFactory
	opts     Options

	handler   MessageHandler
	publisher Publisher

	encodeQR  func(string) string
	now       func() time.Time
	afterFunc func(time.Duration, func()) stopper
	sleep     func(context.Context, time.Duration) error

	ctx    context.Context
	cancel context.CancelFunc
}

func NewController(registry *Registry, factory ClientFactory, opts Options) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	encodeQR := opts.QREncoder
	if encodeQR == nil {
		encodeQR = EncodeQRDataURI
	}
	return &Controller{
		registry: registry,
		factory:  factory,
		opts:     opts,
		encodeQR: encodeQR,
		now:      time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		sleep:  sleepContext,
		ctx:    ctx,
		cancel: cancel,
	}
}

// SetHandler installs the inbound message handler. Call before Init.
func (c *Controller) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Controller) SetPublisher(p Publisher) {
	c.publisher = p
}

func (c *Controller) Registry() *Registry {
	return c.registry
}

func (c *Controller) Status(key IdentityKey) (Connection, bool) {
	return c.registry.Get(key)
}

// Init starts a client for key unless a live or in-flight one exists.
// It returns immediately with the current record and whether a launch began.
func (c *Controller) Init(ctx context.Context, key IdentityKey) (Connection, bool, error) {
	if err := c.ctx.Err(); err != nil {
		return Connection{}, false, fmt.Errorf("controller stopped: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Connection{}, false, err
	}

	fresh := &session{
		key:     key,
		conn:    NewConnection(key, c.opts.Policy, c.now()),
		limiter: c.newLimiter(),
	}

	var (
		s        *session
		inserted bool
	)
	for {
		s, inserted = c.registry.put(fresh)
		s.mu.Lock()
		if !s.removed {
			break
		}
		snap := s.conn
		s.mu.Unlock()
		if inserted {
			// Disconnected before the launch began.
			return snap, false, nil
		}
		// A teardown marked s but has not dropped it from the registry yet.
		c.registry.remove(s)
	}

	if !inserted && (s.conn.State.Live() || s.conn.State.Pending()) {
		snap := s.conn
		s.mu.Unlock()
		return snap, false, nil
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.conn.RetryPending = false
	}
	gen, old := c.beginLaunchLocked(s)
	snap := s.conn
	s.mu.Unlock()

	log.Info().
		Str("identityKey", key.String()).
		Bool("fresh", inserted).
		Msg("connection init")

	c.publish(snap)
	go c.run(s, gen, old)
	return snap, true, nil
}

// Connect initializes key and waits for a pairing artifact or readiness.
func (c *Controller) Connect(ctx context.Context, key IdentityKey) (Connection, error) {
	conn, _, err := c.Init(ctx, key)
	if err != nil {
		return conn, err
	}
	if conn.State.Live() {
		return conn, nil
	}
	return c.AwaitArtifact(ctx, key, c.opts.FirstConnectWait)
}

// AwaitArtifact blocks until the connection issues a QR code, becomes ready,
// or settles disconnected, bounded by timeout.
func (c *Controller) AwaitArtifact(ctx context.Context, key IdentityKey, timeout time.Duration) (Connection, error) {
	s := c.registry.lookup(key)
	if s == nil {
		return Connection{}, ErrNotFound
	}

	s.mu.Lock()
	if s.settledLocked() {
		snap := s.conn
		s.mu.Unlock()
		return snap, nil
	}
	ch := make(chan Connection, 1)
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case conn := <-ch:
		return conn, nil
	case <-timer.C:
		s.dropWaiter(ch)
		return s.snapshot(), ErrTimeout
	case <-ctx.Done():
		s.dropWaiter(ch)
		return s.snapshot(), ctx.Err()
	}
}

// Reconnect tears down any existing client, resets the attempt counter and starts over.
func (c *Controller) Reconnect(ctx context.Context, key IdentityKey) (Connection, error) {
	if s := c.registry.lookup(key); s != nil {
		if client := c.teardown(s); client != nil {
			destroyQuietly(key, client)
		}
	}

	if _, _, err := c.Init(ctx, key); err != nil {
		return Connection{}, err
	}
	return c.AwaitArtifact(ctx, key, c.opts.ReconnectWait)
}

// Disconnect destroys the client and removes the registry entry. With logout
// the device is also unlinked so the next connect needs a fresh QR scan.
func (c *Controller) Disconnect(ctx context.Context, key IdentityKey, logout bool) error {
	s := c.registry.lookup(key)
	if s == nil {
		return ErrNotFound
	}

	client := c.teardown(s)
	if client == nil {
		return nil
	}

	if logout {
		if err := client.Logout(ctx); err != nil {
			log.Warn().Err(err).Str("identityKey", key.String()).Msg("logout failed")
		}
	}
	if err := client.Destroy(); err != nil {
		return fmt.Errorf("destroy client: %w", err)
	}

	log.Info().Str("identityKey", key.String()).Bool("logout", logout).Msg("connection disconnected")
	return nil
}

// Send delivers a text message through the connection for key.
func (c *Controller) Send(ctx context.Context, key IdentityKey, to, body string) error {
	s := c.registry.lookup(key)
	if s == nil {
		return ErrNotFound
	}

	s.mu.Lock()
	client := s.client
	ready := s.conn.State == StateReady
	limiter := s.limiter
	s.mu.Unlock()

	if !ready || client == nil {
		return ErrNotReady
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send throttle: %w", err)
	}
	return client.SendText(ctx, to, body)
}

// Shutdown stops every client and pending timer.
func (c *Controller) Shutdown() {
	c.cancel()
	for _, s := range c.registry.all() {
		if client := c.teardown(s); client != nil {
			destroyQuietly(s.key, client)
		}
	}
}

func (c *Controller) newLimiter() *rate.Limiter {
	if c.opts.SendRate <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := c.opts.SendBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(c.opts.SendRate, burst)
}

// beginLaunchLocked invalidates the current client and returns the new
// generation together with the client to destroy.
func (c *Controller) beginLaunchLocked(s *session) (uint64, Client) {
	s.gen++
	old := s.client
	s.client = nil
	s.subscribed = false
	s.conn.State = StateInitializing
	s.conn.QRCode = ""
	s.conn.UpdatedAt = c.now()
	return s.gen, old
}

func (c *Controller) teardown(s *session) Client {
	s.mu.Lock()
	s.removed = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	client := s.client
	s.client = nil
	s.conn.State = StateDisconnected
	s.conn.RetryPending = false
	s.conn.QRCode = ""
	s.conn.UpdatedAt = c.now()
	waiters := s.waiters
	s.waiters = nil
	snap := s.conn
	s.mu.Unlock()

	c.registry.remove(s)
	for _, w := range waiters {
		w <- snap
	}
	c.publish(snap)
	return client
}

func (c *Controller) current(s *session, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen && !s.removed
}

func (c *Controller) attach(s *session, gen uint64, client Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.removed {
		return false
	}
	s.client = client
	return true
}

func (c *Controller) detach(s *session, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.client = nil
	}
}

// run launches a client, retrying transient failures with a linear step.
func (c *Controller) run(s *session, gen uint64, old Client) {
	if old != nil {
		destroyQuietly(s.key, old)
	}

	var lastErr error
	for attempt := 0; attempt <= c.opts.LaunchRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * c.opts.LaunchRetryStep
			log.Warn().
				Err(lastErr).
				Str("identityKey", s.key.String()).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("retrying client launch")
			if err := c.sleep(c.ctx, wait); err != nil {
				return
			}
			if !c.current(s, gen) {
				return
			}
		}

		client, err := c.factory.New(s.key, func(ev Event) { c.apply(s, gen, ev) })
		if err == nil {
			if !c.attach(s, gen, client) {
				destroyQuietly(s.key, client)
				return
			}
			if err = client.Start(c.ctx); err == nil {
				return
			}
			c.detach(s, gen)
			destroyQuietly(s.key, client)
		}

		lastErr = err
		if !errors.Is(err, ErrTransientLaunch) {
			break
		}
	}

	log.Error().Err(lastErr).Str("identityKey", s.key.String()).Msg("client launch failed")
	c.apply(s, gen, Event{Kind: EventLaunchFailed, Reason: lastErr.Error()})
}

// apply feeds ev through the state machine and carries out the resulting effects.
func (c *Controller) apply(s *session, gen uint64, ev Event) {
	if ev.Kind == EventQR {
		ev.QR = c.encodeQR(ev.QR)
	}

	s.mu.Lock()
	if s.gen != gen || s.removed {
		s.mu.Unlock()
		log.Debug().Str("identityKey", s.key.String()).Str("event", string(ev.Kind)).Msg("stale client event ignored")
		return
	}

	prev := s.conn.State
	next, effects := Transition(s.conn, ev, c.opts.Policy, c.now())
	s.conn = next

	var (
		waiters   []chan Connection
		subscribe Client
		relaunch  bool
		newGen    uint64
		old       Client
	)
	for _, e := range effects {
		switch e.Kind {
		case EffectResolveWaiters:
			waiters = s.waiters
			s.waiters = nil
		case EffectSubscribeRouter:
			if !s.subscribed && s.client != nil {
				s.subscribed = true
				subscribe = s.client
			}
		case EffectScheduleReconnect:
			s.timer = c.afterFunc(e.Delay, func() { c.retry(s, gen) })
			log.Warn().
				Str("identityKey", s.key.String()).
				Str("track", string(e.Track)).
				Str("reason", ev.Reason).
				Int("attempt", e.Attempt).
				Int("maxAttempts", next.MaxAttempts).
				Dur("delay", e.Delay).
				Msg("reconnect scheduled")
		case EffectGiveUp:
			log.Error().
				Str("identityKey", s.key.String()).
				Str("track", string(e.Track)).
				Int("attempts", e.Attempt).
				Msg("reconnect attempts exhausted")
		case EffectLaunch:
			s.timer = nil
			newGen, old = c.beginLaunchLocked(s)
			relaunch = true
		}
	}
	if len(waiters) == 0 && s.settledLocked() {
		waiters = s.waiters
		s.waiters = nil
	}
	snap := s.conn
	s.mu.Unlock()

	if prev != snap.State {
		log.Info().
			Str("identityKey", s.key.String()).
			Str("from", string(prev)).
			Str("to", string(snap.State)).
			Str("event", string(ev.Kind)).
			Msg("connection transition")
	}

	for _, w := range waiters {
		w <- snap
	}
	if subscribe != nil {
		subscribe.OnMessage(c.dispatch)
	}
	c.publish(snap)
	if relaunch {
		go c.run(s, newGen, old)
	}
}

func (c *Controller) retry(s *session, gen uint64) {
	c.apply(s, gen, Event{Kind: EventRetryFired})
}

// dispatch hands msg to the handler on its own goroutine so one slow
// conversation never stalls event delivery for the others.
func (c *Controller) dispatch(msg Inbound) {
	h := c.handler
	if h == nil {
		log.Warn().Str("identityKey", msg.ConnectionKey.String()).Msg("inbound message dropped: no handler")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.opts.InboundTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("identityKey", msg.ConnectionKey.String()).
					Msg("inbound handler panicked")
			}
		}()
		h.HandleInbound(ctx, msg)
	}()
}

func (c *Controller) publish(conn Connection) {
	if c.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.publisher.PublishConnection(ctx, conn); err != nil {
		log.Warn().Err(err).Str("identityKey", conn.Key.String()).Msg("publish connection event failed")
	}
}

func destroyQuietly(key IdentityKey, client Client) {
	if err := client.Destroy(); err != nil {
		log.Debug().Err(err).Str("identityKey", key.String()).Msg("destroy client")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
