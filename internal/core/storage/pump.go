package storage

import "sync"

// DefaultQueueSize is the capacity of a subscription's outbound channel when
// a backend is not configured otherwise.
const DefaultQueueSize = 64

// Pump is the delivery queue behind a Subscription. Producers (backend watch
// goroutines) Push without ever blocking; a single goroutine forwards batches
// in order onto a bounded channel read by the consumer. Batches are never
// dropped while the pump is open.
type Pump struct {
	mu      sync.Mutex
	pending []ChangeBatch
	closing bool
	err     error

	wake     chan struct{}
	stopped  chan struct{}
	out      chan ChangeBatch
	stopOnce sync.Once
}

// NewPump starts a pump whose outbound channel holds up to size batches.
func NewPump(size int) *Pump {
	if size <= 0 {
		size = DefaultQueueSize
	}
	p := &Pump{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		out:     make(chan ChangeBatch, size),
	}
	go p.run()
	return p
}

func (p *Pump) run() {
	defer close(p.out)

	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			closing := p.closing
			p.mu.Unlock()
			if closing {
				return
			}
			select {
			case <-p.wake:
				continue
			case <-p.stopped:
				return
			}
		}
		next := p.pending[0]
		p.pending[0] = ChangeBatch{}
		p.pending = p.pending[1:]
		p.mu.Unlock()

		select {
		case p.out <- next:
		case <-p.stopped:
			return
		}
	}
}

// Push enqueues a batch. Batches pushed after Close or Stop are discarded.
func (p *Pump) Push(batch ChangeBatch) {
	p.mu.Lock()
	if p.closing {
		p.mu.Unlock()
		return
	}
	p.pending = append(p.pending, batch)
	p.mu.Unlock()
	p.signal()
}

// Close ends the subscription from the producer side. Already queued batches
// are still delivered, then Batches is closed and Err reports err.
func (p *Pump) Close(err error) {
	p.mu.Lock()
	if !p.closing {
		p.closing = true
		p.err = err
	}
	p.mu.Unlock()
	p.signal()
}

// Stop ends the subscription from the consumer side, discarding anything
// still queued.
func (p *Pump) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		if !p.closing {
			p.closing = true
			p.err = ErrSubscriptionClosed
		}
		p.pending = nil
		p.mu.Unlock()
		close(p.stopped)
	})
}

// Stopped is closed once Stop has been called. Producer goroutines select on
// it to exit.
func (p *Pump) Stopped() <-chan struct{} {
	return p.stopped
}

func (p *Pump) Batches() <-chan ChangeBatch {
	return p.out
}

func (p *Pump) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pump) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
