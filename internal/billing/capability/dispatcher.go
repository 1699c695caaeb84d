package capability

import (
	"errors"
	"sync"
)

// ErrDispatcherClosed is returned when posting to a closed dispatcher.
var ErrDispatcherClosed = errors.New("capability: dispatcher closed")

// Logger is the minimal logger used by the dispatcher.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Dispatcher runs capability callbacks one at a time on a single goroutine.
type Dispatcher struct {
	queue  chan func()
	quit   chan struct{}
	done   chan struct{}
	logger Logger

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher with the given queue size.
func NewDispatcher(size int, logger Logger) *Dispatcher {
	if size <= 0 {
		size = 1
	}
	d := &Dispatcher{
		queue:  make(chan func(), size),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.quit:
			return
		case fn := <-d.queue:
			d.invoke(fn)
		}
	}
}

func (d *Dispatcher) invoke(fn func()) {
	defer func() {
		if rec := recover(); rec != nil && d.logger != nil {
			d.logger.Errorf("capability callback panic: %v", rec)
		}
	}()
	fn()
}

// Post queues fn for execution. It blocks while the queue is full and
// returns ErrDispatcherClosed once the dispatcher is closed.
func (d *Dispatcher) Post(fn func()) error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- fn:
		return nil
	case <-d.quit:
		return ErrDispatcherClosed
	}
}

// Flush waits until every callback posted before the call has run.
func (d *Dispatcher) Flush() {
	marker := make(chan struct{})
	if err := d.Post(func() { close(marker) }); err != nil {
		return
	}
	select {
	case <-marker:
	case <-d.done:
	}
}

// Close stops the dispatcher. Queued callbacks that have not started are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.quit)
	d.mu.Unlock()
	<-d.done
}
