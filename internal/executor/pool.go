package executor

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrPoolClosed is returned by Execute once the pool is not running.
var ErrPoolClosed = errors.New("executor pool is not running")

// Executor runs tasks off the caller's goroutine.
type Executor interface {
	Execute(task func(ctx context.Context)) error
}

type Config struct {
	MaxConcurrent int
	Logger        *logrus.Logger
}

// Pool runs submitted tasks in background goroutines, at most MaxConcurrent
// at a time. Tasks queued behind the limit are dropped on shutdown.
type Pool struct {
	cfg Config

	sem     chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

func NewPool(cfg Config) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Pool{
		cfg: cfg,
		sem: make(chan struct{}, cfg.MaxConcurrent),
	}
}

func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.cfg.Logger.Infof("executor pool started, max concurrent: %d", p.cfg.MaxConcurrent)
}

func (p *Pool) Execute(task func(ctx context.Context)) error {
	if task == nil {
		return errors.New("task is required")
	}

	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	ctx := p.ctx
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		select {
		case <-ctx.Done():
			return
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
			p.run(ctx, task)
		}
	}()
	return nil
}

func (p *Pool) run(ctx context.Context, task func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.cfg.Logger.Errorf("executor task panicked: %v", r)
		}
	}()
	task(ctx)
}

// Shutdown cancels the pool context and waits for running tasks to return.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.cfg.Logger.Info("executor pool stopped")
}

var _ Executor = (*Pool)(nil)
