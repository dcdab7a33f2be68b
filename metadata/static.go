package metadata

import (
	"io"
	"os"
	"slices"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-record-query/query"
)

// Description is the full metadata of one entity.
type Description struct {
	Entity    string
	Fields    []string
	FieldSets map[string][]string
}

// Entity is the YAML shape of one entity.
type Entity struct {
	Fields    []string            `yaml:"fields"`
	FieldSets map[string][]string `yaml:"field_sets"`
}

// Document is the YAML shape accepted by LoadYAML.
//
//	entities:
//	  Account:
//	    fields: [Id, Name, Industry]
//	    field_sets:
//	      summary: [Id, Name]
type Document struct {
	Entities map[string]Entity `yaml:"entities"`
}

// Validate checks that every entity lists fields and that field sets only
// reference declared fields.
func (d Document) Validate() error {
	errs := validation.Errors{}
	for name, entity := range d.Entities {
		allowed := make([]any, len(entity.Fields))
		for i, f := range entity.Fields {
			allowed[i] = f
		}
		if err := validation.Validate(entity.Fields, validation.Required); err != nil {
			errs[name+".fields"] = err
		}
		for setName, fields := range entity.FieldSets {
			if err := validation.Validate(fields, validation.Required, validation.Each(validation.In(allowed...))); err != nil {
				errs[name+".field_sets."+setName] = err
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Static is an in-memory query.MetadataProvider. Register entities before
// sharing it; lookups do not lock.
type Static struct {
	entities map[string]Entity
}

var _ query.MetadataProvider = (*Static)(nil)

// NewStatic returns an empty provider.
func NewStatic() *Static {
	return &Static{entities: make(map[string]Entity)}
}

// LoadYAML builds a provider from a YAML document.
func LoadYAML(r io.Reader) (*Static, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "decoding metadata document").
			WithTextCode("METADATA_DECODE")
	}
	if err := doc.Validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid metadata document")
	}

	s := NewStatic()
	for name, entity := range doc.Entities {
		s.entities[name] = entity
	}
	return s, nil
}

// LoadFile reads a YAML metadata document from path.
func LoadFile(path string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "opening metadata file "+path)
	}
	defer f.Close()
	return LoadYAML(f)
}

// Register declares entityType with fields, replacing earlier fields.
func (s *Static) Register(entityType string, fields ...string) *Static {
	e := s.entities[entityType]
	e.Fields = append([]string(nil), fields...)
	s.entities[entityType] = e
	return s
}

// RegisterFieldSet declares a named field set on entityType.
func (s *Static) RegisterFieldSet(entityType, name string, fields ...string) *Static {
	e := s.entities[entityType]
	if e.FieldSets == nil {
		e.FieldSets = make(map[string][]string)
	}
	e.FieldSets[name] = append([]string(nil), fields...)
	s.entities[entityType] = e
	return s
}

func (s *Static) AllFields(entityType string) ([]string, error) {
	e, ok := s.entities[entityType]
	if !ok {
		return nil, query.UnknownEntityError(entityType)
	}
	return slices.Clone(e.Fields), nil
}

func (s *Static) FieldSet(entityType, name string) ([]string, error) {
	e, ok := s.entities[entityType]
	if !ok {
		return nil, query.UnknownEntityError(entityType)
	}
	fields, ok := e.FieldSets[name]
	if !ok {
		return nil, query.UnknownFieldSetError(entityType, name)
	}
	return slices.Clone(fields), nil
}

// Describe returns every field and field set of entityType.
func (s *Static) Describe(entityType string) (Description, error) {
	e, ok := s.entities[entityType]
	if !ok {
		return Description{}, query.UnknownEntityError(entityType)
	}
	sets := make(map[string][]string, len(e.FieldSets))
	for name, fields := range e.FieldSets {
		sets[name] = slices.Clone(fields)
	}
	return Description{Entity: entityType, Fields: slices.Clone(e.Fields), FieldSets: sets}, nil
}

// Entities lists the registered entity types in sorted order.
func (s *Static) Entities() []string {
	names := make([]string, 0, len(s.entities))
	for name := range s.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
