package testsupport

import (
	"context"
	"maps"
	"sync"

	"github.com/goliatone/go-record-query/query"
)

// StoreCall is one recorded invocation of a CountingStore.
type StoreCall struct {
	Method   string
	Text     string
	Bindings map[string]any
	Mode     query.AccessMode
}

// CountingStore is a query.Store spy. It records every call and answers with
// the configured records or error.
type CountingStore struct {
	mu      sync.Mutex
	calls   []StoreCall
	records []query.Record
	err     error
	results map[string][]query.Record
}

var _ query.Store = (*CountingStore)(nil)

// NewCountingStore returns a store that answers every query with records.
func NewCountingStore(records ...query.Record) *CountingStore {
	return &CountingStore{records: records}
}

// SetRecords replaces the default answer.
func (s *CountingStore) SetRecords(records ...query.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
}

// SetResult answers the exact query text with records.
func (s *CountingStore) SetResult(text string, records ...query.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.results == nil {
		s.results = make(map[string][]query.Record)
	}
	s.results[text] = records
}

// SetError makes every following call fail with err. A nil err clears it.
func (s *CountingStore) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *CountingStore) Query(_ context.Context, text string) ([]query.Record, error) {
	return s.record(StoreCall{Method: "Query", Text: text})
}

func (s *CountingStore) QueryWithBindings(_ context.Context, text string, bindings map[string]any, mode query.AccessMode) ([]query.Record, error) {
	return s.record(StoreCall{Method: "QueryWithBindings", Text: text, Bindings: maps.Clone(bindings), Mode: mode})
}

func (s *CountingStore) record(call StoreCall) ([]query.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, call)
	if s.err != nil {
		return nil, s.err
	}
	if records, ok := s.results[call.Text]; ok {
		return records, nil
	}
	return s.records, nil
}

// Calls returns a copy of the recorded calls.
func (s *CountingStore) Calls() []StoreCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]StoreCall(nil), s.calls...)
}

// CallCount returns the number of store invocations on either path.
func (s *CountingStore) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// LastCall returns the most recent call.
func (s *CountingStore) LastCall() (StoreCall, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return StoreCall{}, false
	}
	return s.calls[len(s.calls)-1], true
}

// Reset clears the recorded calls.
func (s *CountingStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}
