package live

import (
	"context"
	"sync"
)

// Data holds a value that starts empty and is filled in later. Observers
// are notified on every Set.
type Data[T any] struct {
	mu        sync.Mutex
	value     T
	version   uint64
	nextID    uint64
	observers map[uint64]*observer[T]
}

// observer serialises deliveries to fn and drops any value older than the
// last one it delivered.
type observer[T any] struct {
	mu   sync.Mutex
	seen uint64
	fn   func(T)
}

func (o *observer[T]) deliver(v T, version uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if version <= o.seen {
		return
	}
	o.seen = version
	o.fn(v)
}

func NewData[T any]() *Data[T] {
	return &Data[T]{observers: make(map[uint64]*observer[T])}
}

// Value returns the current value and whether one has been set.
func (d *Data[T]) Value() (T, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value, d.version > 0
}

// Set stores v and calls every registered observer on the caller's
// goroutine. Observers must not call Set on the Data they observe.
func (d *Data[T]) Set(v T) {
	d.mu.Lock()
	d.value = v
	d.version++
	version := d.version
	obs := make([]*observer[T], 0, len(d.observers))
	for _, o := range d.observers {
		obs = append(obs, o)
	}
	d.mu.Unlock()

	for _, o := range obs {
		o.deliver(v, version)
	}
}

// Observe registers fn. If a value is already present fn is called with it
// before Observe returns, unless a concurrent Set already delivered a newer
// one. The returned func removes the observer.
func (d *Data[T]) Observe(fn func(T)) (cancel func()) {
	o := &observer[T]{fn: fn}

	d.mu.Lock()
	if d.observers == nil {
		d.observers = make(map[uint64]*observer[T])
	}
	id := d.nextID
	d.nextID++
	d.observers[id] = o
	current, version := d.value, d.version
	d.mu.Unlock()

	if version > 0 {
		o.deliver(current, version)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.observers, id)
			d.mu.Unlock()
		})
	}
}

// HasObservers reports whether any observer is registered.
func (d *Data[T]) HasObservers() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.observers) > 0
}

// Wait blocks until a value is present or ctx is done.
func (d *Data[T]) Wait(ctx context.Context) (T, error) {
	return d.WaitFor(ctx, func(T) bool { return true })
}

// WaitFor blocks until a value satisfying match is set or ctx is done.
func (d *Data[T]) WaitFor(ctx context.Context, match func(T) bool) (T, error) {
	ch := make(chan T, 1)
	cancel := d.Observe(func(v T) {
		if !match(v) {
			return
		}
		select {
		case ch <- v:
		default:
		}
	})
	defer cancel()

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
