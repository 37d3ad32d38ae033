package gateway

import "time"

type State string

const (
	StateInitializing  State = "initializing"
	StateLoading       State = "loading"
	StateQRIssued      State = "qr_issued"
	StateAuthenticated State = "authenticated"
	StateReady         State = "ready"
	StateDisconnected  State = "disconnected"
)

// Live reports whether the state holds an authenticated session.
func (s State) Live() bool {
	return s == StateReady || s == StateAuthenticated
}

// Pending reports whether a launch is in flight.
func (s State) Pending() bool {
	return s == StateInitializing || s == StateLoading || s == StateQRIssued
}

type EventKind string

const (
	EventLoading       EventKind = "loading"
	EventQR            EventKind = "qr"
	EventAuthenticated EventKind = "authenticated"
	EventReady         EventKind = "ready"
	EventAuthFailure   EventKind = "auth_failure"
	EventDisconnected  EventKind = "disconnected"
	EventLaunchFailed  EventKind = "launch_failed"
	EventRetryFired    EventKind = "retry_fired"
)

// Event is a lifecycle notification from the automation client or the controller itself.
type Event struct {
	Kind   EventKind
	QR     string
	Reason string
}

type Track string

const (
	TrackTransport Track = "transport"
	TrackAuth      Track = "auth"
)

type Backoff struct {
	Min time.Duration
	Max time.Duration
}

// Delay returns Min * 2^(attempt-1) capped at Max.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Min
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

type Policy struct {
	AutoRecover bool
	MaxAttempts int
	Transport   Backoff
	Auth        Backoff
}

func (p Policy) backoff(track Track) Backoff {
	if track == TrackAuth {
		return p.Auth
	}
	return p.Transport
}

// Connection is the registry record for one identity.
type Connection struct {
	Key           IdentityKey `json:"identityKey"`
	State         State       `json:"status"`
	QRCode        string      `json:"qrCode,omitempty"`
	Attempts      int         `json:"attempts"`
	LastAttemptAt time.Time   `json:"lastAttemptAt,omitempty"`
	AutoRecover   bool        `json:"autoRecover"`
	MaxAttempts   int         `json:"maxAttempts"`
	RetryPending  bool        `json:"retryPending"`
	LastReason    string      `json:"lastReason,omitempty"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func NewConnection(key IdentityKey, policy Policy, now time.Time) Connection {
	return Connection{
		Key:         key,
		State:       StateInitializing,
		AutoRecover: policy.AutoRecover,
		MaxAttempts: policy.MaxAttempts,
		UpdatedAt:   now,
	}
}

func (c Connection) Connected() bool {
	return c.State == StateReady
}

type EffectKind string

const (
	EffectResolveWaiters    EffectKind = "resolve_waiters"
	EffectSubscribeRouter   EffectKind = "subscribe_router"
	EffectScheduleReconnect EffectKind = "schedule_reconnect"
	EffectGiveUp            EffectKind = "give_up"
	EffectLaunch            EffectKind = "launch"
)

type Effect struct {
	Kind    EffectKind
	Delay   time.Duration
	Track   Track
	Attempt int
}

// Transition applies ev to conn and returns the next record along with the
// side effects the controller must carry out. It performs no I/O.
func Transition(conn Connection, ev Event, policy Policy, now time.Time) (Connection, []Effect) {
	next := conn
	next.UpdatedAt = now

	switch ev.Kind {
	case EventLoading:
		if conn.State.Live() {
			return conn, nil
		}
		next.State = StateLoading
		return next, nil

	case EventQR:
		next.State = StateQRIssued
		next.QRCode = ev.QR
		return next, []Effect{{Kind: EffectResolveWaiters}}

	case EventAuthenticated:
		next.State = StateAuthenticated
		next.QRCode = ""
		return next, nil

	case EventReady:
		next.State = StateReady
		next.QRCode = ""
		next.Attempts = 0
		next.RetryPending = false
		next.LastReason = ""
		return next, []Effect{{Kind: EffectSubscribeRouter}, {Kind: EffectResolveWaiters}}

	case EventLaunchFailed:
		next.State = StateDisconnected
		next.QRCode = ""
		next.LastReason = ev.Reason
		// A relaunch fired by recovery stays on the transport track until
		// the attempt budget runs out; a first launch settles immediately.
		if conn.Attempts > 0 {
			return scheduleRetry(next, TrackTransport, policy, now)
		}
		return next, []Effect{{Kind: EffectResolveWaiters}}

	case EventRetryFired:
		if !conn.RetryPending {
			return conn, nil
		}
		next.RetryPending = false
		next.State = StateInitializing
		return next, []Effect{{Kind: EffectLaunch}}

	case EventAuthFailure, EventDisconnected:
		next.State = StateDisconnected
		next.QRCode = ""
		next.LastReason = ev.Reason

		track := TrackTransport
		if ev.Kind == EventAuthFailure {
			track = TrackAuth
		}
		return scheduleRetry(next, track, policy, now)
	}

	return conn, nil
}

// scheduleRetry counts and stamps the attempt before the timer exists. A
// pending retry absorbs further failures so only one timer is ever armed.
func scheduleRetry(next Connection, track Track, policy Policy, now time.Time) (Connection, []Effect) {
	if !next.AutoRecover || next.RetryPending {
		return next, nil
	}
	if next.Attempts >= next.MaxAttempts {
		return next, []Effect{{Kind: EffectGiveUp, Track: track, Attempt: next.Attempts}}
	}

	b := policy.backoff(track)
	next.Attempts++
	delay := b.Delay(next.Attempts)
	next.LastAttemptAt = now
	next.RetryPending = true

	return next, []Effect{{
		Kind:    EffectScheduleReconnect,
		Delay:   delay,
		Track:   track,
		Attempt: next.Attempts,
	}}
}
