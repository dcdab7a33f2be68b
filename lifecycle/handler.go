package lifecycle

import (
	"context"

	"github.com/goliatone/go-record-query/query"
)

// Handler reacts to the lifecycle events of one entity type. Implementations
// provide all seven methods; embed NopHandler to implement only some.
type Handler interface {
	BeforeInsert(ctx context.Context, newRecords []query.Record) error
	AfterInsert(ctx context.Context, newRecords []query.Record, newByID query.RecordsByID) error
	BeforeUpdate(ctx context.Context, newRecords []query.Record, newByID query.RecordsByID, oldRecords []query.Record, oldByID query.RecordsByID) error
	AfterUpdate(ctx context.Context, newRecords []query.Record, newByID query.RecordsByID, oldRecords []query.Record, oldByID query.RecordsByID) error
	BeforeDelete(ctx context.Context, oldRecords []query.Record, oldByID query.RecordsByID) error
	AfterDelete(ctx context.Context, oldRecords []query.Record, oldByID query.RecordsByID) error
	AfterUndelete(ctx context.Context, newRecords []query.Record, newByID query.RecordsByID) error
}

// NopHandler implements Handler with methods that do nothing.
type NopHandler struct{}

var _ Handler = NopHandler{}

func (NopHandler) BeforeInsert(context.Context, []query.Record) error { return nil }

func (NopHandler) AfterInsert(context.Context, []query.Record, query.RecordsByID) error { return nil }

func (NopHandler) BeforeUpdate(context.Context, []query.Record, query.RecordsByID, []query.Record, query.RecordsByID) error {
	return nil
}

func (NopHandler) AfterUpdate(context.Context, []query.Record, query.RecordsByID, []query.Record, query.RecordsByID) error {
	return nil
}

func (NopHandler) BeforeDelete(context.Context, []query.Record, query.RecordsByID) error { return nil }

func (NopHandler) AfterDelete(context.Context, []query.Record, query.RecordsByID) error { return nil }

func (NopHandler) AfterUndelete(context.Context, []query.Record, query.RecordsByID) error { return nil }
