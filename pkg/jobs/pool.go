package jobs

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrPoolFull is returned by Submit when every buffer slot is taken.
	ErrPoolFull = errors.New("pool buffer full")
	// ErrPoolStopped is returned for submissions before Start or after Stop.
	ErrPoolStopped = errors.New("pool not running")
)

// Handler processes one item. Failures are the handler's to record; the pool
// never retries.
type Handler[T any] func(ctx context.Context, item T)

// Config sizes a Pool.
type Config struct {
	Workers    int
	BufferSize int
	// ItemTimeout bounds each handler call. Zero leaves calls bounded only by Stop.
	ItemTimeout time.Duration
	Logger      *zap.Logger
}

// Pool feeds items from a bounded buffer to a fixed set of goroutines.
type Pool[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config
	logger  *zap.Logger
	items   chan T

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewPool builds a stopped pool; call Start before submitting.
func NewPool[T any](name string, handler Handler[T], cfg Config) *Pool[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pool[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("pool", name)),
		items:   make(chan T, cfg.BufferSize),
	}
}

// Start launches the workers. Calling it on a running pool is a no-op.
func (p *Pool[T]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	p.running = true
	p.logger.Info("pool started", zap.Int("workers", p.cfg.Workers), zap.Int("buffer", p.cfg.BufferSize))
}

// Stop cancels in-flight handlers and waits for the workers. Buffered items are dropped.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("pool stopped", zap.Int("dropped", len(p.items)))
}

// Pending reports how many items wait in the buffer.
func (p *Pool[T]) Pending() int { return len(p.items) }

// Capacity reports the buffer size.
func (p *Pool[T]) Capacity() int { return cap(p.items) }

// Submit buffers item without blocking.
func (p *Pool[T]) Submit(item T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return fmt.Errorf("%s: %w", p.name, ErrPoolStopped)
	}
	select {
	case p.items <- item:
		return nil
	default:
		return fmt.Errorf("%s: %w", p.name, ErrPoolFull)
	}
}

func (p *Pool[T]) work() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case item := <-p.items:
			p.run(item)
		}
	}
}

func (p *Pool[T]) run(item T) {
	ctx := p.ctx
	if p.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ItemTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
	}()
	p.handler(ctx, item)
}
