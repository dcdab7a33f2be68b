package lifecycle

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-record-query/query"
)

// EventKind is one of the seven record lifecycle stages. The zero value is
// not a valid kind.
type EventKind int

const (
	BeforeInsert EventKind = iota + 1
	AfterInsert
	BeforeUpdate
	AfterUpdate
	BeforeDelete
	AfterDelete
	AfterUndelete
)

var kindNames = map[EventKind]string{
	BeforeInsert:  "BEFORE_INSERT",
	AfterInsert:   "AFTER_INSERT",
	BeforeUpdate:  "BEFORE_UPDATE",
	AfterUpdate:   "AFTER_UPDATE",
	BeforeDelete:  "BEFORE_DELETE",
	AfterDelete:   "AFTER_DELETE",
	AfterUndelete: "AFTER_UNDELETE",
}

// Kinds lists every valid kind in lifecycle order.
func Kinds() []EventKind {
	return []EventKind{BeforeInsert, AfterInsert, BeforeUpdate, AfterUpdate, BeforeDelete, AfterDelete, AfterUndelete}
}

func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether k is one of the seven kinds.
func (k EventKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseEventKind maps names such as "BEFORE_INSERT" or "before_insert" to
// their kind.
func ParseEventKind(name string) (EventKind, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for kind, n := range kindNames {
		if n == upper {
			return kind, nil
		}
	}
	return 0, goerrors.New("unknown lifecycle event kind "+name, goerrors.CategoryBadInput).
		WithTextCode("UNKNOWN_EVENT_KIND")
}

// Event describes one batch of affected records. Which payload fields are set
// depends on Kind; the dispatcher does not check them.
type Event struct {
	Kind    EventKind
	New     []query.Record
	Old     []query.Record
	NewByID query.RecordsByID
	OldByID query.RecordsByID
}

// NewBeforeInsert builds a BEFORE_INSERT event.
func NewBeforeInsert(records []query.Record) Event {
	return Event{Kind: BeforeInsert, New: records}
}

// NewAfterInsert builds an AFTER_INSERT event, indexing records by ID.
func NewAfterInsert(records []query.Record) Event {
	return Event{Kind: AfterInsert, New: records, NewByID: query.IndexByID(records)}
}

// NewBeforeUpdate builds a BEFORE_UPDATE event.
func NewBeforeUpdate(newRecords, oldRecords []query.Record) Event {
	return updateEvent(BeforeUpdate, newRecords, oldRecords)
}

// NewAfterUpdate builds an AFTER_UPDATE event.
func NewAfterUpdate(newRecords, oldRecords []query.Record) Event {
	return updateEvent(AfterUpdate, newRecords, oldRecords)
}

// NewBeforeDelete builds a BEFORE_DELETE event.
func NewBeforeDelete(records []query.Record) Event {
	return Event{Kind: BeforeDelete, Old: records, OldByID: query.IndexByID(records)}
}

// NewAfterDelete builds an AFTER_DELETE event.
func NewAfterDelete(records []query.Record) Event {
	return Event{Kind: AfterDelete, Old: records, OldByID: query.IndexByID(records)}
}

// NewAfterUndelete builds an AFTER_UNDELETE event.
func NewAfterUndelete(records []query.Record) Event {
	return Event{Kind: AfterUndelete, New: records, NewByID: query.IndexByID(records)}
}

func updateEvent(kind EventKind, newRecords, oldRecords []query.Record) Event {
	return Event{
		Kind:    kind,
		New:     newRecords,
		NewByID: query.IndexByID(newRecords),
		Old:     oldRecords,
		OldByID: query.IndexByID(oldRecords),
	}
}
