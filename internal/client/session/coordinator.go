// Package session keeps the client's view of its server session: it
// loads the persisted token, revalidates it against the server on an
// interval, reacts to cross-device invalidation, and detects a second
// instance of the client running on the same machine with the same
// token.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/layerforge/layerforge/internal/client/broadcast"
	"github.com/layerforge/layerforge/internal/client/state"
	"github.com/layerforge/layerforge/internal/common"
	"github.com/layerforge/layerforge/internal/logging"
	"github.com/layerforge/layerforge/internal/randx"
)

// State is the coordinator's current assessment of the session.
type State int

const (
	StateUninitialized State = iota
	// StateUnauthenticated means no usable session token is held.
	StateUnauthenticated
	// StateAwaitingValidation means a token is held but the server has
	// not confirmed it yet (for example right after startup, or while
	// the server is unreachable).
	StateAwaitingValidation
	// StateValid means the server confirmed the token on the last check.
	StateValid
	// StateSuperseded means the session was taken over from another
	// device. The user must log in again; the state survives restarts
	// until explicitly dismissed.
	StateSuperseded
	// StateDuplicate means another instance of the client is running on
	// this machine with the same session. Terminal for this instance.
	StateDuplicate
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingValidation:
		return "awaiting validation"
	case StateValid:
		return "valid"
	case StateSuperseded:
		return "superseded"
	case StateDuplicate:
		return "duplicate"
	default:
		return "uninitialized"
	}
}

type validator interface {
	ValidateSession(ctx context.Context, sessionToken string) (common.SessionReason, error)
}

const defaultAnnounceDelay = 500 * time.Millisecond

// Coordinator drives the session state machine. Run and the REPL touch it
// from different goroutines, so mu guards st and token.
type Coordinator struct {
	store  state.Store
	api    validator
	bus    broadcast.Bus
	logger logging.Logger

	instanceID    string
	openedAt      int64
	interval      time.Duration
	announceDelay time.Duration
	now           func() time.Time

	mu    sync.Mutex
	st    State
	token string
}

// NewCoordinator creates a coordinator. Run must be called to start
// revalidation and duplicate detection.
func NewCoordinator(store state.Store, api validator, bus broadcast.Bus, logger logging.Logger, interval time.Duration) *Coordinator {
	c := &Coordinator{
		store:         store,
		api:           api,
		bus:           bus,
		logger:        logger,
		instanceID:    randx.NewToken(),
		interval:      interval,
		announceDelay: defaultAnnounceDelay,
		now:           time.Now,
		st:            StateUninitialized,
	}
	c.openedAt = c.now().UnixMilli()
	return c
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st
}

// Token returns the session token currently held, or "".
func (c *Coordinator) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Load restores persisted state. A malformed stored token is discarded
// locally without a server round trip. A persisted kicked flag wins
// over any stored token.
func (c *Coordinator) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	kicked, err := c.store.Get(ctx, state.KeyKicked)
	if err != nil {
		return err
	}
	if kicked != "" {
		c.st = StateSuperseded
		return nil
	}

	token, err := c.store.Get(ctx, state.KeySessionToken)
	if err != nil {
		return err
	}
	if token == "" {
		c.st = StateUnauthenticated
		return nil
	}
	if !randx.ValidTokenShape(token) {
		c.logger.Warn(ctx, "discarding malformed stored session token")
		if err := c.store.Delete(ctx, state.KeySessionToken); err != nil {
			return err
		}
		c.st = StateUnauthenticated
		return nil
	}
	c.token = token
	c.st = StateAwaitingValidation
	return nil
}

// SetSession stores a freshly granted session.
func (c *Coordinator) SetSession(ctx context.Context, token, userID, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Set(ctx, state.KeySessionToken, token); err != nil {
		return err
	}
	if err := c.store.Set(ctx, state.KeyUserID, userID); err != nil {
		return err
	}
	if err := c.store.Set(ctx, state.KeyEmail, email); err != nil {
		return err
	}
	if err := c.store.Delete(ctx, state.KeyKicked); err != nil {
		return err
	}
	c.token = token
	c.st = StateValid
	return nil
}

// DismissKick acknowledges a superseded session so the client can offer
// a fresh login.
func (c *Coordinator) DismissKick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, state.KeyKicked); err != nil {
		return err
	}
	if c.st == StateSuperseded {
		c.st = StateUnauthenticated
	}
	return nil
}

// Revalidate asks the server whether the held token is still the active
// one and updates the state accordingly. Transport failures keep the
// current state.
func (c *Coordinator) Revalidate(ctx context.Context) error {
	c.mu.Lock()
	if c.st == StateDuplicate || c.st == StateSuperseded || c.token == "" {
		c.mu.Unlock()
		return nil
	}
	token := c.token
	c.mu.Unlock()

	reason, err := c.api.ValidateSession(ctx, token)

	c.mu.Lock()
	defer c.mu.Unlock()
	// A login or kick may have replaced the token while the request was
	// in flight. The result no longer applies.
	if c.token != token {
		return nil
	}
	if err != nil {
		c.logger.Warn(ctx, "session revalidation failed", "error", err.Error())
		c.st = StateAwaitingValidation
		return nil
	}
	switch reason {
	case common.SessionValid:
		c.st = StateValid
	case common.SessionInvalidated, common.SessionNoAppUser:
		return c.kick(ctx)
	case common.SessionInvalidTokenFormat:
		if err := c.store.Delete(ctx, state.KeySessionToken); err != nil {
			return err
		}
		c.token = ""
		c.st = StateUnauthenticated
	case common.SessionNotAuthenticated:
		c.st = StateUnauthenticated
	}
	return nil
}

// kick records that the session was taken over elsewhere. The flag is
// persisted so the next startup still reports it.
func (c *Coordinator) kick(ctx context.Context) error {
	if err := c.store.Delete(ctx, state.KeySessionToken); err != nil {
		return err
	}
	if err := c.store.Set(ctx, state.KeyKicked, "1"); err != nil {
		return err
	}
	c.token = ""
	c.st = StateSuperseded
	c.logger.Info(ctx, "session invalidated by another device")
	return nil
}

// Announce tells other local instances about this one.
func (c *Coordinator) Announce(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if c.bus == nil || token == "" {
		return nil
	}
	return c.bus.Send(ctx, broadcast.Message{
		Kind:       broadcast.KindAnnounce,
		Token:      token,
		InstanceID: c.instanceID,
		OpenedAt:   c.openedAt,
	})
}

// HandleMessage processes one broadcast message. An announce from a
// peer holding the same token is answered with our presence; both
// message kinds then run the same election so the outcome does not
// depend on delivery order: the instance opened later yields, and on a
// tie the lexically greater instance id yields. Duplicate is one way.
func (c *Coordinator) HandleMessage(ctx context.Context, msg broadcast.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == "" || msg.Token != c.token || msg.InstanceID == c.instanceID {
		return nil
	}
	if msg.Kind == broadcast.KindAnnounce && c.bus != nil {
		err := c.bus.Send(ctx, broadcast.Message{
			Kind:       broadcast.KindPresence,
			Token:      c.token,
			InstanceID: c.instanceID,
			OpenedAt:   c.openedAt,
		})
		if err != nil {
			c.logger.Warn(ctx, "failed to answer instance announce", "error", err.Error())
		}
	}
	if c.st == StateDuplicate {
		return nil
	}
	if c.losesTo(msg) {
		c.st = StateDuplicate
		c.logger.Warn(ctx, "another client instance owns this session, standing down",
			"peer", msg.InstanceID)
	}
	return nil
}

func (c *Coordinator) losesTo(msg broadcast.Message) bool {
	if c.openedAt != msg.OpenedAt {
		return c.openedAt > msg.OpenedAt
	}
	return c.instanceID > msg.InstanceID
}

// Run revalidates on an interval and reacts to broadcast messages until
// ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	announce := time.NewTimer(c.announceDelay)
	defer announce.Stop()
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	var recv <-chan broadcast.Message
	if c.bus != nil {
		recv = c.bus.Receive()
	}

	if err := c.Revalidate(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-announce.C:
			if err := c.Announce(ctx); err != nil {
				c.logger.Warn(ctx, "instance announce failed", "error", err.Error())
			}
		case msg, ok := <-recv:
			if !ok {
				recv = nil
				continue
			}
			if err := c.HandleMessage(ctx, msg); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.Revalidate(ctx); err != nil {
				return err
			}
		}
	}
}
