package firemock

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"google.golang.org/grpc/codes"
)

const (
	TxNotStarted = "not_started"
	TxInProgress = "in_progress"
	TxCommitted  = "committed"
	TxRolledBack = "rolled_back"

	evBegin    = "begin"
	evCommit   = "commit"
	evRollback = "rollback"
)

// Transaction buffers writes and applies them together on Commit. Reads are
// not isolated: Get and Documents see the store as it is at the moment of
// the call, including direct writes made outside the transaction.
//
// A Transaction moves through not_started, in_progress, and then either
// committed or rolled_back. Use RunTransaction unless you need to drive the
// states by hand.
type Transaction struct {
	c        *Client
	id       string
	readOnly bool
	state    *fsm.FSM
	writes   []writeOp

	startTime time.Time
	stack     string
}

// TransactionOption configures a Transaction.
type TransactionOption interface {
	applyTx(tx *Transaction)
}

type readOnlyOption struct{}

func (readOnlyOption) applyTx(tx *Transaction) { tx.readOnly = true }

// ReadOnly makes every write method of the transaction fail.
var ReadOnly TransactionOption = readOnlyOption{}

// Transaction returns a transaction in the not_started state.
func (c *Client) Transaction(opts ...TransactionOption) *Transaction {
	tx := &Transaction{c: c}
	for _, opt := range opts {
		opt.applyTx(tx)
	}
	tx.state = fsm.NewFSM(
		TxNotStarted,
		fsm.Events{
			{Name: evBegin, Src: []string{TxNotStarted}, Dst: TxInProgress},
			{Name: evCommit, Src: []string{TxInProgress}, Dst: TxCommitted},
			{Name: evRollback, Src: []string{TxInProgress}, Dst: TxRolledBack},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				c.debugf(ctx, "firemock: transaction", slog.String("id", tx.id), slog.String("from", e.Src), slog.String("to", e.Dst))
			},
		},
	)
	return tx
}

// ID is the opaque token assigned by Begin, or "" before that.
func (tx *Transaction) ID() string {
	return tx.id
}

// State returns one of TxNotStarted, TxInProgress, TxCommitted and
// TxRolledBack.
func (tx *Transaction) State() string {
	return tx.state.Current()
}

func (tx *Transaction) InProgress() bool {
	return tx.state.Is(TxInProgress)
}

func (tx *Transaction) IsReadOnly() bool {
	return tx.readOnly
}

// Begin starts the transaction. It fails with FailedPrecondition if the
// transaction has already begun or has finished.
func (tx *Transaction) Begin(ctx context.Context) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}
	if tx.InProgress() {
		return errf(codes.FailedPrecondition, "", nil, "The transaction has already begun. Current transaction ID: %q.", tx.id)
	}
	tx.id = uuid.NewString()
	if err := tx.state.Event(ctx, evBegin); err != nil {
		tx.id = ""
		return errf(codes.FailedPrecondition, "", err, "cannot begin a transaction in state %s", tx.State())
	}
	tx.c.addTx(tx)
	return nil
}

// Commit applies the buffered writes in the order they were made and returns
// one WriteResult per write. If any write fails, the store is restored to
// its state before Commit, the transaction is rolled back, and the error is
// returned.
func (tx *Transaction) Commit(ctx context.Context) ([]*WriteResult, error) {
	if !tx.InProgress() {
		return nil, notFoundf("", "The transaction has no transaction ID, so it cannot be committed.")
	}
	results, err := tx.c.applyWrites(ctx, tx.writes)
	if err != nil {
		tx.finish(ctx, evRollback)
		return nil, err
	}
	tx.finish(ctx, evCommit)
	return results, nil
}

// Rollback discards the buffered writes.
func (tx *Transaction) Rollback(ctx context.Context) error {
	if !tx.InProgress() {
		return notFoundf("", "The transaction has no transaction ID, so it cannot be rolled back.")
	}
	tx.finish(ctx, evRollback)
	return nil
}

func (tx *Transaction) finish(ctx context.Context, event string) {
	tx.writes = nil
	ensure(tx.state.Event(context.WithoutCancel(ctx), event))
	tx.c.removeTx(tx)
}

// Get reads a document directly from the store.
func (tx *Transaction) Get(dr *DocumentRef) (*DocumentSnapshot, error) {
	if dr == nil {
		return nil, invalidArgf("", "Value for argument \"ref_or_query\" must be a DocumentReference or a Query.")
	}
	return dr.Get(context.Background())
}

// GetAll reads several documents; see Client.GetAll.
func (tx *Transaction) GetAll(drs []*DocumentRef) ([]*DocumentSnapshot, error) {
	return tx.c.GetAll(context.Background(), drs)
}

// Documents runs a query. q is a Query, *CollectionRef or
// *CollectionGroupRef.
func (tx *Transaction) Documents(q Queryer) *DocumentIterator {
	if q == nil {
		return &DocumentIterator{err: invalidArgf("", "Value for argument \"ref_or_query\" must be a DocumentReference or a Query.")}
	}
	return q.query().Documents(context.Background())
}

// Create buffers a Create of dr.
func (tx *Transaction) Create(dr *DocumentRef, data any) error {
	return tx.enqueue(opCreate, dr, data, nil)
}

// Set buffers a Set of dr.
func (tx *Transaction) Set(dr *DocumentRef, data any, opts ...SetOption) error {
	return tx.enqueue(opSet, dr, data, opts)
}

// Update buffers an Update of dr.
func (tx *Transaction) Update(dr *DocumentRef, data map[string]any) error {
	return tx.enqueue(opUpdate, dr, data, nil)
}

// Delete buffers a Delete of dr.
func (tx *Transaction) Delete(dr *DocumentRef) error {
	return tx.enqueue(opDelete, dr, nil, nil)
}

func (tx *Transaction) enqueue(kind opKind, dr *DocumentRef, data any, opts []SetOption) error {
	if tx.readOnly {
		return errf(codes.FailedPrecondition, "", nil, "Cannot perform write operation in read-only transaction.")
	}
	if tx.state.Is(TxCommitted) || tx.state.Is(TxRolledBack) {
		return errf(codes.FailedPrecondition, "", nil, "cannot write in a transaction that is already %s", tx.State())
	}
	op, err := newWriteOp(kind, dr, data, opts)
	if err != nil {
		return err
	}
	tx.writes = append(tx.writes, op)
	return nil
}

// RunTransaction begins a transaction, calls f, and commits if f returns nil.
// If f returns an error or panics, the transaction is rolled back and the
// error (or the panic converted into one) is returned. Nothing is retried.
func (c *Client) RunTransaction(ctx context.Context, f func(context.Context, *Transaction) error, opts ...TransactionOption) error {
	tx := c.Transaction(opts...)
	if err := tx.Begin(ctx); err != nil {
		return err
	}
	if err := safelyCall(ctx, f, tx); err != nil {
		if tx.InProgress() {
			ensure(tx.Rollback(ctx))
		}
		return err
	}
	_, err := tx.Commit(ctx)
	return err
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyCall(ctx context.Context, fn func(context.Context, *Transaction) error, tx *Transaction) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = panicked{p, string(debug.Stack())}
		}
	}()
	return fn(ctx, tx)
}
