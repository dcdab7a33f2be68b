package metadata

import (
	"reflect"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-record-query/query"
)

// FieldSetTag is the struct tag listing the field sets a column belongs to,
// for example `fieldset:"summary,detail"`.
const FieldSetTag = "fieldset"

// BunProvider derives entity metadata from registered bun models. The entity
// type is the model's table name and field names are SQL column names.
type BunProvider struct {
	static *Static
	tables map[string]*schema.Table
}

var _ query.MetadataProvider = (*BunProvider)(nil)

// NewBunProvider reflects every model through db. Models are struct values or
// pointers to structs, e.g. (*Account)(nil).
func NewBunProvider(db *bun.DB, models ...any) (*BunProvider, error) {
	p := &BunProvider{
		static: NewStatic(),
		tables: make(map[string]*schema.Table, len(models)),
	}
	for _, model := range models {
		if err := p.register(db, model); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *BunProvider) register(db *bun.DB, model any) error {
	typ := reflect.TypeOf(model)
	for typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return goerrors.New("metadata model must be a struct or pointer to struct", goerrors.CategoryBadInput).
			WithTextCode("INVALID_MODEL").
			WithMetadata(map[string]any{"model": reflect.TypeOf(model)})
	}

	table := db.Table(typ)
	entity := table.Name
	p.tables[entity] = table

	fields := make([]string, 0, len(table.Fields))
	for _, f := range table.Fields {
		fields = append(fields, f.Name)
		for _, set := range strings.Split(f.StructField.Tag.Get(FieldSetTag), ",") {
			if set = strings.TrimSpace(set); set != "" {
				p.addToSet(entity, set, f.Name)
			}
		}
	}
	p.static.Register(entity, fields...)
	return nil
}

func (p *BunProvider) addToSet(entity, set, field string) {
	existing, _ := p.static.FieldSet(entity, set)
	p.static.RegisterFieldSet(entity, set, append(existing, field)...)
}

// RegisterFieldSet adds a field set that is not expressed through struct tags.
func (p *BunProvider) RegisterFieldSet(entityType, name string, fields ...string) error {
	if _, ok := p.tables[entityType]; !ok {
		return query.UnknownEntityError(entityType)
	}
	p.static.RegisterFieldSet(entityType, name, fields...)
	return nil
}

func (p *BunProvider) AllFields(entityType string) ([]string, error) {
	return p.static.AllFields(entityType)
}

func (p *BunProvider) FieldSet(entityType, name string) ([]string, error) {
	return p.static.FieldSet(entityType, name)
}

// Describe returns every field and field set of entityType.
func (p *BunProvider) Describe(entityType string) (Description, error) {
	return p.static.Describe(entityType)
}

// Table returns the bun table backing entityType.
func (p *BunProvider) Table(entityType string) (*schema.Table, bool) {
	t, ok := p.tables[entityType]
	return t, ok
}
