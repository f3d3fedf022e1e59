package store

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultSaveTimeout bounds how long the persister waits on a single
// write before logging and moving on.
const DefaultSaveTimeout = 5 * time.Second

// Persister serializes fire-and-forget saves through a single
// goroutine. Mutation callers enqueue a snapshot and return
// immediately; writes happen in causal order, and back-to-back
// mutations coalesce into the latest snapshot.
type Persister struct {
	store   *Store
	timeout time.Duration
	logger  *zap.Logger

	pending chan map[string]any // Depth 1; newer snapshots replace pending ones
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewPersister creates and starts a persister for the store.
// A timeout of zero uses DefaultSaveTimeout.
func NewPersister(s *Store, timeout time.Duration, logger *zap.Logger) *Persister {
	if timeout <= 0 {
		timeout = DefaultSaveTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Persister{
		store:   s,
		timeout: timeout,
		logger:  logger,
		pending: make(chan map[string]any, 1),
		done:    make(chan struct{}),
	}

	p.wg.Add(1)
	go p.run()

	return p
}

// Enqueue schedules a snapshot for persistence without blocking.
// A snapshot still waiting to be written is replaced; only the most
// recent state needs to reach disk.
func (p *Persister) Enqueue(snapshot map[string]any) {
	for {
		select {
		case p.pending <- snapshot:
			return
		default:
		}
		// Queue full: drop the stale pending snapshot and retry.
		select {
		case <-p.pending:
		default:
		}
	}
}

// Close flushes any pending snapshot and stops the persister.
// It is safe to call Close multiple times.
func (p *Persister) Close() {
	p.once.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}

func (p *Persister) run() {
	defer p.wg.Done()

	for {
		select {
		case snapshot := <-p.pending:
			p.save(snapshot)
		case <-p.done:
			// Flush whatever is still pending before exiting.
			select {
			case snapshot := <-p.pending:
				p.save(snapshot)
			default:
			}
			return
		}
	}
}

// save runs one write, bounded by the configured timeout. A write that
// outlives the timeout keeps running in the background; the store's
// generation guard discards its result if a newer write commits first.
func (p *Persister) save(snapshot map[string]any) {
	result := make(chan error, 1)
	go func() {
		result <- p.store.Save(snapshot)
	}()

	select {
	case err := <-result:
		if err != nil {
			p.logger.Warn("configuration save failed",
				zap.String("path", p.store.Path()), zap.Error(err))
		}
	case <-time.After(p.timeout):
		p.logger.Warn("configuration save timed out",
			zap.String("path", p.store.Path()),
			zap.Duration("timeout", p.timeout))
	}
}
