package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"gitlab.com/dirk.krummacker/contacts/internal/async"
	"gitlab.com/dirk.krummacker/contacts/internal/config"
	"gitlab.com/dirk.krummacker/contacts/internal/metrics"
	"gitlab.com/dirk.krummacker/contacts/pkg/model"
)

// writeQueueSize bounds the number of write transactions waiting for the writer.
const writeQueueSize = 64

// Gateway mediates all reads and writes of contacts. Writes run one at a time, each inside its
// own transaction, on a dedicated writer goroutine. Their results are delivered through futures
// whose callbacks run on the configured dispatcher.
type Gateway struct {
	db         *sqlx.DB
	dispatcher async.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	events     *broadcaster

	mu     sync.RWMutex
	closed bool
	jobs   chan func()
	wg     sync.WaitGroup
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithDispatcher sets the context on which completion callbacks run.
func WithDispatcher(d async.Dispatcher) Option {
	return func(g *Gateway) {
		g.dispatcher = d
	}
}

// WithLogger sets the logger for failed transactions and dropped notifications.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics the gateway reports to. Without it the gateway uses its own.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// Open opens and migrates the configured store and returns a gateway for it. Any failure is an
// initialization error; the caller cannot continue without a store.
func Open(cfg config.Store, opts ...Option) (*Gateway, error) {
	db, err := OpenDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	return New(db, opts...), nil
}

// New returns a gateway for an already migrated database handle. The database argument can be
// a real database for production use or a mock database within unit tests.
func New(db *sqlx.DB, opts ...Option) *Gateway {
	g := &Gateway{
		db:         db,
		dispatcher: async.Immediate,
		logger:     slog.Default(),
		jobs:       make(chan func(), writeQueueSize),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = metrics.New()
	}
	g.events = newBroadcaster(g.logger, g.metrics)
	g.wg.Add(1)
	go g.run()
	return g
}

// Close waits for all submitted writes to finish, closes the notification channels and then the
// database.
func (g *Gateway) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	close(g.jobs)
	g.mu.Unlock()

	g.wg.Wait()
	g.events.close()
	return g.db.Close()
}

// run is the writer loop. It executes one job at a time, so at most one transaction is open.
func (g *Gateway) run() {
	defer g.wg.Done()
	for job := range g.jobs {
		job()
	}
}

func (g *Gateway) submit(job func()) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return false
	}
	g.jobs <- job
	return true
}

// perform queues work on the writer and resolves the returned future with its result. onCommit
// runs on the writer after a successful result and before the future resolves.
func perform[T any](g *Gateway, op string, work func() (T, error), onCommit func(T)) *async.Future[T] {
	future := async.NewFuture[T](g.dispatcher)
	submitted := g.submit(func() {
		start := time.Now()
		value, err := recovered(op, work)
		g.metrics.ObserveTransaction(op, outcome(err), time.Since(start))
		if err != nil {
			g.logger.Debug("contacts transaction failed", "op", op, "error", err)
		} else if onCommit != nil {
			onCommit(value)
		}
		future.Resolve(value, err)
	})
	if !submitted {
		var zero T
		future.Resolve(zero, ErrClosed)
	}
	return future
}

// transact runs fn inside a database transaction and commits it if fn succeeds. Errors returned
// by fn are passed through unchanged; begin and commit failures become TransactionErrors.
func transact[T any](g *Gateway, op string, fn func(tx *sqlx.Tx) (T, error)) (value T, err error) {
	var zero T
	tx, err := g.db.Beginx()
	if err != nil {
		return zero, &TransactionError{Op: op, Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	value, err = recovered(op, func() (T, error) { return fn(tx) })
	if err != nil {
		return zero, err
	}
	if err = tx.Commit(); err != nil {
		return zero, &TransactionError{Op: op, Err: err}
	}
	return value, nil
}

// recovered runs work and turns a panic into a TransactionError, so the writer survives code
// supplied by callers and the transaction is rolled back.
func recovered[T any](op string, work func() (T, error)) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value, err = zero, &TransactionError{Op: op, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return work()
}

// outcome classifies an error for the metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, model.ErrParametersRequired):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
