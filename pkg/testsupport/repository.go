package testsupport

import (
	"context"
	"errors"
	"sort"
	"sync"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ErrRecordNotFound is returned by MemoryRepository lookups that miss.
var ErrRecordNotFound = errors.New("record not found")

// ErrRawUnsupported is returned by MemoryRepository.Raw.
var ErrRawUnsupported = errors.New("raw SQL is not supported by the memory repository")

// MemoryRepository is a map backed repository.Repository that records the
// name of every method called. Criteria arguments are ignored: reads return
// every row sorted by ID, and criteria deletes remove every row.
type MemoryRepository[T any] struct {
	mu     sync.Mutex
	idOf   func(T) string
	rows   map[string]T
	calls  []string
	failOn map[string]error
}

var _ repository.Repository[any] = (*MemoryRepository[any])(nil)

// NewMemoryRepository returns a repository holding records, keyed by idOf.
func NewMemoryRepository[T any](idOf func(T) string, records ...T) *MemoryRepository[T] {
	r := &MemoryRepository[T]{
		idOf:   idOf,
		rows:   make(map[string]T, len(records)),
		failOn: make(map[string]error),
	}
	for _, record := range records {
		r.rows[idOf(record)] = record
	}
	return r
}

// FailOn makes method return err before touching any row.
func (r *MemoryRepository[T]) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn[method] = err
}

// Calls returns the called method names in order.
func (r *MemoryRepository[T]) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Rows returns the stored records sorted by ID.
func (r *MemoryRepository[T]) Rows() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted()
}

func (r *MemoryRepository[T]) enter(method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, method)
	return r.failOn[method]
}

func (r *MemoryRepository[T]) sorted() []T {
	ids := make([]string, 0, len(r.rows))
	for id := range r.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = r.rows[id]
	}
	return out
}

func (r *MemoryRepository[T]) get(method, id string) (T, error) {
	var zero T
	if err := r.enter(method); err != nil {
		return zero, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.rows[id]
	if !ok {
		return zero, ErrRecordNotFound
	}
	return record, nil
}

func (r *MemoryRepository[T]) first(method string) (T, error) {
	var zero T
	if err := r.enter(method); err != nil {
		return zero, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.sorted()
	if len(rows) == 0 {
		return zero, ErrRecordNotFound
	}
	return rows[0], nil
}

func (r *MemoryRepository[T]) list(method string) ([]T, int, error) {
	if err := r.enter(method); err != nil {
		return nil, 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := r.sorted()
	return rows, len(rows), nil
}

func (r *MemoryRepository[T]) store(method string, records []T, mustExist bool) ([]T, error) {
	if err := r.enter(method); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if mustExist {
		for _, record := range records {
			if _, ok := r.rows[r.idOf(record)]; !ok {
				return nil, ErrRecordNotFound
			}
		}
	}
	for _, record := range records {
		r.rows[r.idOf(record)] = record
	}
	return append([]T(nil), records...), nil
}

func (r *MemoryRepository[T]) storeOne(method string, record T, mustExist bool) (T, error) {
	stored, err := r.store(method, []T{record}, mustExist)
	if err != nil {
		var zero T
		return zero, err
	}
	return stored[0], nil
}

func (r *MemoryRepository[T]) remove(method string, record T) error {
	if err := r.enter(method); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.idOf(record)
	if _, ok := r.rows[id]; !ok {
		return ErrRecordNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *MemoryRepository[T]) removeAll(method string) error {
	if err := r.enter(method); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = make(map[string]T)
	return nil
}

func (r *MemoryRepository[T]) getOrCreate(method string, record T) (T, error) {
	if err := r.enter(method); err != nil {
		var zero T
		return zero, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.idOf(record)
	if existing, ok := r.rows[id]; ok {
		return existing, nil
	}
	r.rows[id] = record
	return record, nil
}

func (r *MemoryRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	return r.first("Get")
}

func (r *MemoryRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	return r.get("GetByID", id)
}

func (r *MemoryRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return r.list("List")
}

func (r *MemoryRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	_, total, err := r.list("Count")
	return total, err
}

func (r *MemoryRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return r.get("GetByIdentifier", identifier)
}

func (r *MemoryRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return r.first("GetTx")
}

func (r *MemoryRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return r.get("GetByIDTx", id)
}

func (r *MemoryRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return r.list("ListTx")
}

func (r *MemoryRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	_, total, err := r.list("CountTx")
	return total, err
}

func (r *MemoryRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return r.get("GetByIdentifierTx", identifier)
}

func (r *MemoryRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	return r.storeOne("Create", record, false)
}

func (r *MemoryRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	return r.storeOne("CreateTx", record, false)
}

func (r *MemoryRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return r.store("CreateMany", records, false)
}

func (r *MemoryRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return r.store("CreateManyTx", records, false)
}

func (r *MemoryRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	return r.getOrCreate("GetOrCreate", record)
}

func (r *MemoryRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	return r.getOrCreate("GetOrCreateTx", record)
}

func (r *MemoryRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return r.storeOne("Update", record, true)
}

func (r *MemoryRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return r.storeOne("UpdateTx", record, true)
}

func (r *MemoryRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return r.store("UpdateMany", records, true)
}

func (r *MemoryRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return r.store("UpdateManyTx", records, true)
}

func (r *MemoryRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return r.storeOne("Upsert", record, false)
}

func (r *MemoryRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return r.storeOne("UpsertTx", record, false)
}

func (r *MemoryRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return r.store("UpsertMany", records, false)
}

func (r *MemoryRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return r.store("UpsertManyTx", records, false)
}

func (r *MemoryRepository[T]) Delete(ctx context.Context, record T) error {
	return r.remove("Delete", record)
}

func (r *MemoryRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return r.remove("DeleteTx", record)
}

func (r *MemoryRepository[T]) ForceDelete(ctx context.Context, record T) error {
	return r.remove("ForceDelete", record)
}

func (r *MemoryRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return r.remove("ForceDeleteTx", record)
}

func (r *MemoryRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return r.removeAll("DeleteMany")
}

func (r *MemoryRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return r.removeAll("DeleteManyTx")
}

func (r *MemoryRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return r.removeAll("DeleteWhere")
}

func (r *MemoryRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return r.removeAll("DeleteWhereTx")
}

func (r *MemoryRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	if err := r.enter("Raw"); err != nil {
		return nil, err
	}
	return nil, ErrRawUnsupported
}

func (r *MemoryRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	if err := r.enter("RawTx"); err != nil {
		return nil, err
	}
	return nil, ErrRawUnsupported
}

func (r *MemoryRepository[T]) Handlers() repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{}
}
