package repositoryevents

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-record-query/lifecycle"
	"github.com/goliatone/go-record-query/query"
)

const textCodeMissingID = "MISSING_RECORD_ID"

const (
	logMsgEvent      = "repository write raised lifecycle event"
	logMsgNoSnapshot = "upsert target not found, treated as insert"

	logAttrKind    = "kind"
	logAttrRecords = "records"
	logAttrID      = "id"
)

// Interface assertion to ensure Repository implements repository.Repository
var _ repository.Repository[any] = (*Repository[any])(nil)

// Dispatcher receives lifecycle events. *lifecycle.Dispatcher and
// lifecycle.EntityRoute satisfy it.
type Dispatcher interface {
	Dispatch(ctx context.Context, event lifecycle.Event) error
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	logger query.Logger
}

// WithLogger logs every raised event at debug level.
func WithLogger(logger query.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Repository decorates a base repository so that writes raise lifecycle
// events. Before events run ahead of the write and a failing handler aborts
// it. After events run once the write succeeded; a failing handler's error
// is returned together with the written records.
//
// Reads, GetOrCreate and the criteria deletes (DeleteMany, DeleteWhere) pass
// through without events: they do not expose which records they touch.
type Repository[T any] struct {
	base       repository.Repository[T]
	dispatcher Dispatcher
	toRecord   Mapper[T]
	logger     query.Logger
}

// New wraps base. toRecord converts models into the records carried by
// events; BunMapper covers bun models.
func New[T any](base repository.Repository[T], dispatcher Dispatcher, toRecord Mapper[T], opts ...Option) *Repository[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T]{
		base:       base,
		dispatcher: dispatcher,
		toRecord:   toRecord,
		logger:     o.logger,
	}
}

// Get retrieves a single record using the provided criteria
func (r *Repository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	return r.base.Get(ctx, criteria...)
}

// GetByID retrieves a record by ID
func (r *Repository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	return r.base.GetByID(ctx, id, criteria...)
}

// List retrieves multiple records using the provided criteria
func (r *Repository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return r.base.List(ctx, criteria...)
}

// Count returns the number of records matching the criteria
func (r *Repository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	return r.base.Count(ctx, criteria...)
}

// GetByIdentifier retrieves a record by identifier
func (r *Repository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return r.base.GetByIdentifier(ctx, identifier, criteria...)
}

func (r *Repository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return r.base.GetTx(ctx, tx, criteria...)
}

func (r *Repository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return r.base.GetByIDTx(ctx, tx, id, criteria...)
}

func (r *Repository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return r.base.ListTx(ctx, tx, criteria...)
}

func (r *Repository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return r.base.CountTx(ctx, tx, criteria...)
}

func (r *Repository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return r.base.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

// Create raises BEFORE_INSERT and AFTER_INSERT around the insert
func (r *Repository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	return one(r.insert(ctx, []T{record}, func() ([]T, error) {
		created, err := r.base.Create(ctx, record, criteria...)
		return []T{created}, err
	}))
}

// CreateTx is Create within a transaction
func (r *Repository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	return one(r.insert(ctx, []T{record}, func() ([]T, error) {
		created, err := r.base.CreateTx(ctx, tx, record, criteria...)
		return []T{created}, err
	}))
}

// CreateMany raises one BEFORE_INSERT and one AFTER_INSERT for the batch
func (r *Repository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return r.insert(ctx, records, func() ([]T, error) {
		return r.base.CreateMany(ctx, records, criteria...)
	})
}

// CreateManyTx is CreateMany within a transaction
func (r *Repository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return r.insert(ctx, records, func() ([]T, error) {
		return r.base.CreateManyTx(ctx, tx, records, criteria...)
	})
}

// GetOrCreate passes through: the base does not report whether it inserted
func (r *Repository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	return r.base.GetOrCreate(ctx, record)
}

func (r *Repository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	return r.base.GetOrCreateTx(ctx, tx, record)
}

// Update loads the stored record, then raises BEFORE_UPDATE and AFTER_UPDATE
// with both versions
func (r *Repository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return one(r.update(ctx, []T{record}, r.loader(ctx), func() ([]T, error) {
		updated, err := r.base.Update(ctx, record, criteria...)
		return []T{updated}, err
	}))
}

// UpdateTx is Update within a transaction; the stored record is read
// through tx
func (r *Repository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return one(r.update(ctx, []T{record}, r.txLoader(ctx, tx), func() ([]T, error) {
		updated, err := r.base.UpdateTx(ctx, tx, record, criteria...)
		return []T{updated}, err
	}))
}

// UpdateMany raises one BEFORE_UPDATE and one AFTER_UPDATE for the batch
func (r *Repository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return r.update(ctx, records, r.loader(ctx), func() ([]T, error) {
		return r.base.UpdateMany(ctx, records, criteria...)
	})
}

// UpdateManyTx is UpdateMany within a transaction
func (r *Repository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return r.update(ctx, records, r.txLoader(ctx, tx), func() ([]T, error) {
		return r.base.UpdateManyTx(ctx, tx, records, criteria...)
	})
}

// Upsert raises update events when the record exists and insert events
// otherwise
func (r *Repository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return one(r.upsert(ctx, []T{record}, r.loader(ctx), func() ([]T, error) {
		written, err := r.base.Upsert(ctx, record, criteria...)
		return []T{written}, err
	}))
}

// UpsertTx is Upsert within a transaction
func (r *Repository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return one(r.upsert(ctx, []T{record}, r.txLoader(ctx, tx), func() ([]T, error) {
		written, err := r.base.UpsertTx(ctx, tx, record, criteria...)
		return []T{written}, err
	}))
}

// UpsertMany splits the batch into inserted and updated records and raises
// the events of each group
func (r *Repository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return r.upsert(ctx, records, r.loader(ctx), func() ([]T, error) {
		return r.base.UpsertMany(ctx, records, criteria...)
	})
}

// UpsertManyTx is UpsertMany within a transaction
func (r *Repository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return r.upsert(ctx, records, r.txLoader(ctx, tx), func() ([]T, error) {
		return r.base.UpsertManyTx(ctx, tx, records, criteria...)
	})
}

// Undelete writes a previously soft deleted record back through Update and
// raises AFTER_UNDELETE. The caller clears the soft delete column.
func (r *Repository[T]) Undelete(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	restored, err := r.base.Update(ctx, record, criteria...)
	if err != nil {
		return restored, err
	}
	return restored, r.dispatch(ctx, lifecycle.NewAfterUndelete(r.records([]T{restored})))
}

// UndeleteTx is Undelete within a transaction
func (r *Repository[T]) UndeleteTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	restored, err := r.base.UpdateTx(ctx, tx, record, criteria...)
	if err != nil {
		return restored, err
	}
	return restored, r.dispatch(ctx, lifecycle.NewAfterUndelete(r.records([]T{restored})))
}

// Delete raises BEFORE_DELETE and AFTER_DELETE around the delete
func (r *Repository[T]) Delete(ctx context.Context, record T) error {
	return r.delete(ctx, record, func() error { return r.base.Delete(ctx, record) })
}

// DeleteTx is Delete within a transaction
func (r *Repository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return r.delete(ctx, record, func() error { return r.base.DeleteTx(ctx, tx, record) })
}

// ForceDelete raises the same events as Delete
func (r *Repository[T]) ForceDelete(ctx context.Context, record T) error {
	return r.delete(ctx, record, func() error { return r.base.ForceDelete(ctx, record) })
}

// ForceDeleteTx is ForceDelete within a transaction
func (r *Repository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return r.delete(ctx, record, func() error { return r.base.ForceDeleteTx(ctx, tx, record) })
}

func (r *Repository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return r.base.DeleteMany(ctx, criteria...)
}

func (r *Repository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return r.base.DeleteManyTx(ctx, tx, criteria...)
}

func (r *Repository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return r.base.DeleteWhere(ctx, criteria...)
}

func (r *Repository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return r.base.DeleteWhereTx(ctx, tx, criteria...)
}

// Raw executes a raw SQL query and returns the results
func (r *Repository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return r.base.Raw(ctx, sql, args...)
}

// RawTx executes a raw SQL query within a transaction
func (r *Repository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return r.base.RawTx(ctx, tx, sql, args...)
}

// Handlers returns the model handlers from the base repository
func (r *Repository[T]) Handlers() repository.ModelHandlers[T] {
	return r.base.Handlers()
}

type loadFn[T any] func(id string) (T, error)

func (r *Repository[T]) loader(ctx context.Context) loadFn[T] {
	return func(id string) (T, error) { return r.base.GetByID(ctx, id) }
}

func (r *Repository[T]) txLoader(ctx context.Context, tx bun.IDB) loadFn[T] {
	return func(id string) (T, error) { return r.base.GetByIDTx(ctx, tx, id) }
}

func (r *Repository[T]) insert(ctx context.Context, records []T, write func() ([]T, error)) ([]T, error) {
	if err := r.dispatch(ctx, lifecycle.NewBeforeInsert(r.records(records))); err != nil {
		return nil, err
	}
	created, err := write()
	if err != nil {
		return nil, err
	}
	return created, r.dispatch(ctx, lifecycle.NewAfterInsert(r.records(created)))
}

func (r *Repository[T]) update(ctx context.Context, records []T, load loadFn[T], write func() ([]T, error)) ([]T, error) {
	current := r.records(records)
	old, err := r.snapshot(current, load)
	if err != nil {
		return nil, err
	}
	if err := r.dispatch(ctx, lifecycle.NewBeforeUpdate(current, old)); err != nil {
		return nil, err
	}
	updated, err := write()
	if err != nil {
		return nil, err
	}
	return updated, r.dispatch(ctx, lifecycle.NewAfterUpdate(r.records(updated), old))
}

func (r *Repository[T]) upsert(ctx context.Context, records []T, load loadFn[T], write func() ([]T, error)) ([]T, error) {
	var inserts, updates, old []query.Record
	for _, rec := range r.records(records) {
		id := rec.ID()
		if id == "" {
			inserts = append(inserts, rec)
			continue
		}
		stored, err := load(id)
		if err != nil {
			r.debug(logMsgNoSnapshot, logAttrID, id)
			inserts = append(inserts, rec)
			continue
		}
		updates = append(updates, rec)
		old = append(old, r.toRecord(stored))
	}

	if err := r.dispatch(ctx, lifecycle.NewBeforeInsert(inserts)); err != nil {
		return nil, err
	}
	if err := r.dispatch(ctx, lifecycle.NewBeforeUpdate(updates, old)); err != nil {
		return nil, err
	}

	written, err := write()
	if err != nil {
		return nil, err
	}

	oldByID := query.IndexByID(old)
	var inserted, updated []query.Record
	for _, rec := range r.records(written) {
		if _, ok := oldByID[rec.ID()]; ok {
			updated = append(updated, rec)
		} else {
			inserted = append(inserted, rec)
		}
	}
	if err := r.dispatch(ctx, lifecycle.NewAfterInsert(inserted)); err != nil {
		return written, err
	}
	return written, r.dispatch(ctx, lifecycle.NewAfterUpdate(updated, old))
}

func (r *Repository[T]) delete(ctx context.Context, record T, write func() error) error {
	old := r.records([]T{record})
	if err := r.dispatch(ctx, lifecycle.NewBeforeDelete(old)); err != nil {
		return err
	}
	if err := write(); err != nil {
		return err
	}
	return r.dispatch(ctx, lifecycle.NewAfterDelete(old))
}

// snapshot loads the stored version of every record.
func (r *Repository[T]) snapshot(records []query.Record, load loadFn[T]) ([]query.Record, error) {
	old := make([]query.Record, 0, len(records))
	for _, rec := range records {
		id := rec.ID()
		if id == "" {
			return nil, goerrors.New("record has no id to load its stored version", goerrors.CategoryBadInput).
				WithTextCode(textCodeMissingID)
		}
		stored, err := load(id)
		if err != nil {
			return nil, err
		}
		old = append(old, r.toRecord(stored))
	}
	return old, nil
}

func (r *Repository[T]) records(models []T) []query.Record {
	out := make([]query.Record, 0, len(models))
	for _, m := range models {
		if rec := r.toRecord(m); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

// dispatch skips events without records.
func (r *Repository[T]) dispatch(ctx context.Context, event lifecycle.Event) error {
	if len(event.New) == 0 && len(event.Old) == 0 {
		return nil
	}
	r.debug(logMsgEvent, logAttrKind, event.Kind.String(), logAttrRecords, max(len(event.New), len(event.Old)))
	return r.dispatcher.Dispatch(ctx, event)
}

func (r *Repository[T]) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func one[T any](records []T, err error) (T, error) {
	var zero T
	if len(records) == 0 {
		return zero, err
	}
	return records[0], err
}
