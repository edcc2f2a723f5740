package webservice

import (
	"context"
	"errors"
	"sync"

	"user-profile/internal/domain"
)

// ErrUserNotFound is returned when the remote service has no such user.
var ErrUserNotFound = errors.New("remote user not found")

// Service is the remote source of user profiles.
type Service interface {
	GetUser(userID string) Call
}

// Call is a single prepared request. It runs once, either synchronously via
// Execute or asynchronously via Enqueue.
type Call interface {
	Execute(ctx context.Context) (*domain.User, error)
	Enqueue(cb Callback)
	Cancel()
}

// Callback receives the outcome of an enqueued call. Exactly one of the two
// funcs runs, on a goroutine owned by the call.
type Callback struct {
	OnResponse func(user *domain.User)
	OnFailure  func(err error)
}

var errCallExecuted = errors.New("call already executed")

// FetchFunc performs the actual remote request.
type FetchFunc func(ctx context.Context) (*domain.User, error)

type call struct {
	fetch FetchFunc

	mu       sync.Mutex
	executed bool
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCall wraps fetch into a Call. Service implementations and test fakes
// build their calls with it.
func NewCall(fetch FetchFunc) Call {
	ctx, cancel := context.WithCancel(context.Background())
	return &call{fetch: fetch, ctx: ctx, cancel: cancel}
}

func (c *call) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.executed {
		return errCallExecuted
	}
	c.executed = true
	return nil
}

func (c *call) Execute(ctx context.Context) (*domain.User, error) {
	if err := c.begin(); err != nil {
		return nil, err
	}
	defer c.cancel()

	ctx, stop := mergeCancel(ctx, c.ctx)
	defer stop()
	return c.fetch(ctx)
}

func (c *call) Enqueue(cb Callback) {
	if err := c.begin(); err != nil {
		go deliver(cb, nil, err)
		return
	}

	go func() {
		defer c.cancel()
		user, err := c.fetch(c.ctx)
		deliver(cb, user, err)
	}()
}

func (c *call) Cancel() {
	c.cancel()
}

func deliver(cb Callback, user *domain.User, err error) {
	if err != nil {
		if cb.OnFailure != nil {
			cb.OnFailure(err)
		}
		return
	}
	if cb.OnResponse != nil {
		cb.OnResponse(user)
	}
}

// mergeCancel returns a context derived from parent that is also cancelled
// when other is.
func mergeCancel(parent, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
