package lifecycle_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-record-query/lifecycle"
	"github.com/goliatone/go-record-query/pkg/testsupport"
	"github.com/goliatone/go-record-query/query"
)

var (
	newRecords = []query.Record{{"Id": "001", "Name": "Acme"}, {"Id": "002", "Name": "Globex"}}
	oldRecords = []query.Record{{"Id": "001", "Name": "Acme Inc"}}
)

func TestDispatch_RoutesEachKind(t *testing.T) {
	tests := []struct {
		name    string
		event   lifecycle.Event
		wantNew bool
		wantOld bool
		wantIDs bool
	}{
		{"before insert", lifecycle.NewBeforeInsert(newRecords), true, false, false},
		{"after insert", lifecycle.NewAfterInsert(newRecords), true, false, true},
		{"before update", lifecycle.NewBeforeUpdate(newRecords, oldRecords), true, true, true},
		{"after update", lifecycle.NewAfterUpdate(newRecords, oldRecords), true, true, true},
		{"before delete", lifecycle.NewBeforeDelete(oldRecords), false, true, true},
		{"after delete", lifecycle.NewAfterDelete(oldRecords), false, true, true},
		{"after undelete", lifecycle.NewAfterUndelete(newRecords), true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := testsupport.NewSpyHandler()
			err := lifecycle.NewDispatcher(spy).Dispatch(context.Background(), tt.event)
			require.NoError(t, err)

			calls := spy.Calls()
			require.Len(t, calls, 1)
			call := calls[0]
			assert.Equal(t, tt.event.Kind, call.Kind)

			if tt.wantNew {
				assert.Equal(t, newRecords, call.New)
			} else {
				assert.Nil(t, call.New)
			}
			if tt.wantOld {
				assert.Equal(t, oldRecords, call.Old)
			} else {
				assert.Nil(t, call.Old)
			}
			if tt.wantIDs && tt.wantNew {
				assert.Len(t, call.NewByID, 2)
				assert.Equal(t, "Globex", call.NewByID["002"].String("Name"))
			}
			if tt.wantIDs && tt.wantOld {
				assert.Equal(t, "Acme Inc", call.OldByID["001"].String("Name"))
			}
		})
	}
}

func TestDispatch_PassesPayloadThroughUnchecked(t *testing.T) {
	spy := testsupport.NewSpyHandler()
	event := lifecycle.Event{Kind: lifecycle.AfterInsert, New: newRecords}

	require.NoError(t, lifecycle.NewDispatcher(spy).Dispatch(context.Background(), event))

	call := spy.Calls()[0]
	assert.Nil(t, call.NewByID)
}

func TestDispatch_ReturnsHandlerError(t *testing.T) {
	handlerErr := errors.New("validation rule failed")
	spy := testsupport.NewSpyHandler()
	spy.FailOn(lifecycle.BeforeUpdate, handlerErr)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	d := lifecycle.NewDispatcher(spy, lifecycle.WithLogger(logger))
	err := d.Dispatch(context.Background(), lifecycle.NewBeforeUpdate(newRecords, oldRecords))

	assert.Same(t, handlerErr, err)
	assert.Contains(t, logs.String(), "lifecycle handler failed")
	assert.Contains(t, logs.String(), "kind=BEFORE_UPDATE")
}

func TestDispatch_UnknownKindPanics(t *testing.T) {
	spy := testsupport.NewSpyHandler()
	d := lifecycle.NewDispatcher(spy)

	assert.Panics(t, func() {
		_ = d.Dispatch(context.Background(), lifecycle.Event{})
	})
	assert.Panics(t, func() {
		_ = d.Dispatch(context.Background(), lifecycle.Event{Kind: lifecycle.AfterUndelete + 1})
	})
	assert.Empty(t, spy.Calls())
}

type insertOnly struct {
	lifecycle.NopHandler
	seen int
}

func (h *insertOnly) BeforeInsert(_ context.Context, records []query.Record) error {
	h.seen += len(records)
	return nil
}

func TestNopHandler_Embedding(t *testing.T) {
	h := &insertOnly{}
	d := lifecycle.NewDispatcher(h)

	for _, kind := range lifecycle.Kinds() {
		event := lifecycle.Event{Kind: kind, New: newRecords, Old: oldRecords}
		require.NoError(t, d.Dispatch(context.Background(), event), kind.String())
	}
	assert.Equal(t, 2, h.seen)
}

func TestEventKind_Names(t *testing.T) {
	kinds := lifecycle.Kinds()
	require.Len(t, kinds, 7)

	for _, kind := range kinds {
		assert.True(t, kind.Valid())
		parsed, err := lifecycle.ParseEventKind(kind.String())
		require.NoError(t, err)
		assert.Equal(t, kind, parsed)
	}

	parsed, err := lifecycle.ParseEventKind(" after_undelete ")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.AfterUndelete, parsed)

	_, err = lifecycle.ParseEventKind("AFTER_MERGE")
	assert.Error(t, err)

	var zero lifecycle.EventKind
	assert.False(t, zero.Valid())
	assert.Equal(t, "UNKNOWN", zero.String())
}

func TestRouter(t *testing.T) {
	ctx := context.Background()
	accounts := testsupport.NewSpyHandler()
	contacts := testsupport.NewSpyHandler()

	r := lifecycle.NewRouter().
		Register("Account", accounts).
		Register("Contact", contacts)
	assert.Equal(t, []string{"Account", "Contact"}, r.EntityTypes())

	require.NoError(t, r.Dispatch(ctx, "Account", lifecycle.NewAfterInsert(newRecords)))
	require.NoError(t, r.Dispatch(ctx, "Contact", lifecycle.NewBeforeDelete(oldRecords)))
	require.NoError(t, r.Dispatch(ctx, "Account", lifecycle.NewAfterUndelete(newRecords)))

	assert.Equal(t, []lifecycle.EventKind{lifecycle.AfterInsert, lifecycle.AfterUndelete}, accounts.Kinds())
	assert.Equal(t, []lifecycle.EventKind{lifecycle.BeforeDelete}, contacts.Kinds())

	err := r.Dispatch(ctx, "Lead", lifecycle.NewAfterInsert(newRecords))
	assert.ErrorIs(t, err, lifecycle.ErrNoHandler)
	assert.Contains(t, err.Error(), "Lead")
}

func TestRouter_For(t *testing.T) {
	ctx := context.Background()
	contacts := testsupport.NewSpyHandler()
	r := lifecycle.NewRouter().Register("Contact", contacts)

	route := r.For("Contact")
	require.NoError(t, route.Dispatch(ctx, lifecycle.NewBeforeInsert(newRecords)))
	assert.Equal(t, []lifecycle.EventKind{lifecycle.BeforeInsert}, contacts.Kinds())

	assert.ErrorIs(t, r.For("Lead").Dispatch(ctx, lifecycle.NewBeforeInsert(newRecords)), lifecycle.ErrNoHandler)
}
