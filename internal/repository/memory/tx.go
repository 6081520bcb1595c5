// Package memory holds in-process repositories. They back tests and the
// single-node mode of cmd/app when no database is configured.
package memory

import (
	"context"
	"sync"

	"github.com/Domenick1991/railbooking/internal/repository"
)

type undoKey struct{}

type undoLog struct {
	mu  sync.Mutex
	fns []func()
}

func (l *undoLog) add(fn func()) {
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *undoLog) rollback() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.fns) - 1; i >= 0; i-- {
		l.fns[i]()
	}
	l.fns = nil
}

// Transactor gives memory repositories all-or-nothing semantics: every write
// made inside WithinTx registers its inverse and the inverses run in reverse
// order if fn fails.
type Transactor struct{}

func NewTransactor() Transactor {
	return Transactor{}
}

func (Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		return fn(ctx)
	}
	log := &undoLog{}
	if err := fn(context.WithValue(ctx, undoKey{}, log)); err != nil {
		log.rollback()
		return err
	}
	return nil
}

func onRollback(ctx context.Context, fn func()) {
	if log, ok := ctx.Value(undoKey{}).(*undoLog); ok {
		log.add(fn)
	}
}

var _ repository.Transactor = Transactor{}
