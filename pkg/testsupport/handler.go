package testsupport

import (
	"context"
	"sync"

	"github.com/goliatone/go-record-query/lifecycle"
	"github.com/goliatone/go-record-query/query"
)

// HandlerCall is one recorded lifecycle handler invocation.
type HandlerCall struct {
	Kind    lifecycle.EventKind
	New     []query.Record
	Old     []query.Record
	NewByID query.RecordsByID
	OldByID query.RecordsByID
}

// SpyHandler records every lifecycle method call. Errors set with FailOn are
// returned for the matching kind.
type SpyHandler struct {
	mu    sync.Mutex
	calls []HandlerCall
	fail  map[lifecycle.EventKind]error
}

var _ lifecycle.Handler = (*SpyHandler)(nil)

// NewSpyHandler returns an empty spy.
func NewSpyHandler() *SpyHandler {
	return &SpyHandler{fail: make(map[lifecycle.EventKind]error)}
}

// FailOn makes the method for kind return err.
func (h *SpyHandler) FailOn(kind lifecycle.EventKind, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail[kind] = err
}

// Calls returns a copy of the recorded calls.
func (h *SpyHandler) Calls() []HandlerCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HandlerCall(nil), h.calls...)
}

// Kinds returns the kinds of the recorded calls in order.
func (h *SpyHandler) Kinds() []lifecycle.EventKind {
	h.mu.Lock()
	defer h.mu.Unlock()
	kinds := make([]lifecycle.EventKind, len(h.calls))
	for i, c := range h.calls {
		kinds[i] = c.Kind
	}
	return kinds
}

func (h *SpyHandler) BeforeInsert(_ context.Context, newRecords []query.Record) error {
	return h.record(HandlerCall{Kind: lifecycle.BeforeInsert, New: newRecords})
}

func (h *SpyHandler) AfterInsert(_ context.Context, newRecords []query.Record, newByID query.RecordsByID) error {
	return h.record(HandlerCall{Kind: lifecycle.AfterInsert, New: newRecords, NewByID: newByID})
}

func (h *SpyHandler) BeforeUpdate(_ context.Context, newRecords []query.Record, newByID query.RecordsByID, oldRecords []query.Record, oldByID query.RecordsByID) error {
	return h.record(HandlerCall{Kind: lifecycle.BeforeUpdate, New: newRecords, NewByID: newByID, Old: oldRecords, OldByID: oldByID})
}

func (h *SpyHandler) AfterUpdate(_ context.Context, newRecords []query.Record, newByID query.RecordsByID, oldRecords []query.Record, oldByID query.RecordsByID) error {
	return h.record(HandlerCall{Kind: lifecycle.AfterUpdate, New: newRecords, NewByID: newByID, Old: oldRecords, OldByID: oldByID})
}

func (h *SpyHandler) BeforeDelete(_ context.Context, oldRecords []query.Record, oldByID query.RecordsByID) error {
	return h.record(HandlerCall{Kind: lifecycle.BeforeDelete, Old: oldRecords, OldByID: oldByID})
}

func (h *SpyHandler) AfterDelete(_ context.Context, oldRecords []query.Record, oldByID query.RecordsByID) error {
	return h.record(HandlerCall{Kind: lifecycle.AfterDelete, Old: oldRecords, OldByID: oldByID})
}

func (h *SpyHandler) AfterUndelete(_ context.Context, newRecords []query.Record, newByID query.RecordsByID) error {
	return h.record(HandlerCall{Kind: lifecycle.AfterUndelete, New: newRecords, NewByID: newByID})
}

func (h *SpyHandler) record(call HandlerCall) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
	return h.fail[call.Kind]
}
