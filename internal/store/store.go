// Package store keeps the local todo list in step with the remote service.
//
// Every operation follows the same protocol: mark busy, clear the previous
// error, run one gateway call, then apply that call's result to the local
// list without re-fetching. Failures leave the list untouched and set a
// fixed, operation-specific message.
//
// Busy counts in-flight operations. Each operation is numbered when issued
// and only the most recently issued one may write the error message, so a
// slow older call settling late cannot overwrite a newer outcome.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Makepad-fr/tada/internal/api"
	"github.com/Makepad-fr/tada/internal/model"
)

// Messages shown to the user, one per operation kind.
const (
	MsgFetch      = "failed to fetch todos"
	MsgCreate     = "failed to create todo"
	MsgUpdate     = "failed to update todo"
	MsgDelete     = "failed to delete todo"
	MsgValidation = "please enter a title"
)

var (
	// ErrValidation marks failures caught locally, before any network call.
	ErrValidation = errors.New("validation failed")
	// ErrUnknownItem is returned by Toggle when the id is not in the local list.
	ErrUnknownItem = errors.New("no such todo in the local list")
	// ErrEmptyUpdate is returned by Update when no field is set. Nothing is
	// sent and the store state is left as is.
	ErrEmptyUpdate = errors.New("update sets no fields")
)

// Gateway is the remote side the store drives. *api.Client implements it.
type Gateway interface {
	List(ctx context.Context) ([]model.Item, error)
	Create(ctx context.Context, req model.CreateRequest) (model.Item, error)
	Update(ctx context.Context, id int64, req model.UpdateRequest) (model.Item, error)
	Delete(ctx context.Context, id int64) error
}

var _ Gateway = (*api.Client)(nil)

// Snapshot is a consistent read of everything a presenter needs.
type Snapshot struct {
	Items []model.Item
	Busy  bool
	Err   string
	Stats model.Stats
}

type Store struct {
	gw  Gateway
	log *slog.Logger

	mu       sync.Mutex
	items    []model.Item
	inflight int
	errMsg   string
	issued   uint64 // sequence number of the most recently issued operation

	activate sync.Once
	onChange func(Snapshot)
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// WithOnChange registers fn to be called after every state transition.
// fn runs on the goroutine that caused the change, outside the store lock.
func WithOnChange(fn func(Snapshot)) Option { return func(s *Store) { s.onChange = fn } }

func New(gw Gateway, opts ...Option) *Store {
	s := &Store{gw: gw, items: []model.Item{}, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "store")
	return s
}

// Activate performs the initial fetch. Only the first call does anything;
// later calls return nil immediately.
func (s *Store) Activate(ctx context.Context) error {
	var err error
	ran := false
	s.activate.Do(func() {
		ran = true
		err = s.Refresh(ctx)
	})
	if !ran {
		return nil
	}
	return err
}

// Refresh replaces the local list with the server's.
func (s *Store) Refresh(ctx context.Context) error {
	return s.run("fetch", MsgFetch, func() (func(), error) {
		items, err := s.gw.List(ctx)
		if err != nil {
			return nil, err
		}
		return func() { s.items = append([]model.Item{}, items...) }, nil
	})
}

// Create validates req locally, then submits it. The created item is
// prepended to the list.
func (s *Store) Create(ctx context.Context, req model.CreateRequest) error {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return s.reject(err)
	}
	return s.run("create", MsgCreate, func() (func(), error) {
		it, err := s.gw.Create(ctx, req)
		if err != nil {
			return nil, err
		}
		return func() { s.items = append([]model.Item{it}, s.items...) }, nil
	})
}

// Update sends the supplied fields and swaps in the server's copy of the
// item, keeping its position.
func (s *Store) Update(ctx context.Context, id int64, req model.UpdateRequest) error {
	if req.Empty() {
		return fmt.Errorf("update %d: %w", id, ErrEmptyUpdate)
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return s.reject(err)
	}
	return s.run("update", MsgUpdate, func() (func(), error) {
		it, err := s.gw.Update(ctx, id, req)
		if err != nil {
			return nil, err
		}
		return func() {
			for i := range s.items {
				if s.items[i].ID == id {
					s.items[i] = it
				}
			}
		}, nil
	})
}

// Toggle flips the completion flag of a locally known item.
func (s *Store) Toggle(ctx context.Context, id int64) error {
	it, ok := s.Find(id)
	if !ok {
		return fmt.Errorf("toggle %d: %w", id, ErrUnknownItem)
	}
	return s.Update(ctx, id, model.Toggle(it))
}

// Delete removes the item remotely, then locally. An id the list does not
// hold is not an error as long as the server accepted the delete.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.run("delete", MsgDelete, func() (func(), error) {
		if err := s.gw.Delete(ctx, id); err != nil {
			return nil, err
		}
		return func() {
			out := make([]model.Item, 0, len(s.items))
			for _, it := range s.items {
				if it.ID != id {
					out = append(out, it)
				}
			}
			s.items = out
		}, nil
	})
}

// Items returns a copy of the list, in local order.
func (s *Store) Items() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Item{}, s.items...)
}

func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

// Err returns the current error message, "" when there is none.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Stats is recomputed from the list on every call.
func (s *Store) Stats() model.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.ComputeStats(s.items)
}

func (s *Store) Find(id int64) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			return it, true
		}
	}
	return model.Item{}, false
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Items: append([]model.Item{}, s.items...),
		Busy:  s.inflight > 0,
		Err:   s.errMsg,
		Stats: model.ComputeStats(s.items),
	}
}

// begin marks an operation as in flight and returns its sequence number.
func (s *Store) begin() uint64 {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.inflight++
	s.errMsg = ""
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return seq
}

// run wraps one gateway round trip. call returns the reconciliation to
// apply on success; settling happens in a defer so the in-flight count
// drops on every path.
func (s *Store) run(op, msg string, call func() (func(), error)) (err error) {
	seq := s.begin()
	var apply func()
	defer func() { err = s.finish(seq, op, msg, apply, err) }()
	apply, err = call()
	return err
}

// finish settles operation seq. On success apply runs under the lock; on
// failure msg becomes the error message if seq is still the latest.
func (s *Store) finish(seq uint64, op, msg string, apply func(), err error) error {
	s.mu.Lock()
	s.inflight--
	latest := seq == s.issued
	if err == nil && apply != nil {
		apply()
	}
	if err != nil && latest {
		s.errMsg = msg
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		s.log.Error("operation failed", "op", op, "seq", seq, "kind", api.Kind(err), "err", err)
		err = fmt.Errorf("%s: %w", msg, err)
	} else {
		s.log.Debug("operation ok", "op", op, "seq", seq, "items", len(snap.Items))
	}
	s.notify(snap)
	return err
}

// reject records a local validation failure. It never touches busy.
func (s *Store) reject(cause error) error {
	s.mu.Lock()
	s.issued++
	s.errMsg = MsgValidation
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Warn("validation failed", "err", cause)
	s.notify(snap)
	return fmt.Errorf("%w: %w", ErrValidation, cause)
}

func (s *Store) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
