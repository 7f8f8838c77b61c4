package schema

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vitalk/apistub/core/entity"
	"github.com/vitalk/apistub/core/storage"
)

// Schema is the serialization contract of record type T. It holds no
// per-call state and is safe for concurrent use.
type Schema[T entity.Record] struct {
	name       string
	model      *entity.Model[T]
	fields     []entity.Field
	byPath     map[string]entity.Field
	validateID bool
	validate   *validator.Validate
}

// Option configures a Schema.
type Option func(*options)

type options struct {
	name       string
	only       []string
	validateID bool
}

// Name overrides the schema name, <Model>Schema by default.
func Name(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// Only restricts the loaded and dumped fields to the given names.
func Only(names ...string) Option {
	return func(o *options) {
		o.only = append(o.only, names...)
	}
}

// ValidateIdentifier rejects payloads whose id does not reference an
// existing record.
func ValidateIdentifier() Option {
	return func(o *options) {
		o.validateID = true
	}
}

// New builds the schema of model. It panics when Only names an unknown field.
func New[T entity.Record](model *entity.Model[T], opts ...Option) *Schema[T] {
	o := options{name: model.Name() + "Schema"}
	for _, opt := range opts {
		opt(&o)
	}

	fields := model.Fields()
	if len(o.only) > 0 {
		selected := make([]entity.Field, 0, len(o.only))
		for _, name := range o.only {
			f, ok := model.Field(name)
			if !ok {
				panic(fmt.Sprintf("schema: %s has no field %q", model.Name(), name))
			}
			selected = append(selected, f)
		}
		fields = selected
	}

	s := &Schema[T]{
		name:       o.name,
		model:      model,
		byPath:     make(map[string]entity.Field, len(fields)),
		validateID: o.validateID,
		validate:   validator.New(),
	}
	for _, f := range fields {
		if f.Hidden {
			continue
		}
		s.fields = append(s.fields, f)
		s.byPath[f.Path] = f
	}
	return s
}

// Name returns the schema name.
func (s *Schema[T]) Name() string { return s.name }

// Model returns the bound record model.
func (s *Schema[T]) Model() *entity.Model[T] { return s.model }

// Fields returns the loadable and dumpable fields.
func (s *Schema[T]) Fields() []entity.Field {
	return append([]entity.Field(nil), s.fields...)
}

// LoadOption configures a single Load call.
type LoadOption[T entity.Record] func(*loadOptions[T])

type loadOptions[T entity.Record] struct {
	into T
}

// Into loads the payload into rec instead of resolving a record.
// It applies to one call only.
func Into[T entity.Record](rec T) LoadOption[T] {
	return func(o *loadOptions[T]) {
		o.into = rec
	}
}

// Load validates payload and returns the record it applies to, with the
// payload fields merged in. Validation failures are returned as
// *ValidationError. The session is used for record lookups only; nothing
// is saved.
func (s *Schema[T]) Load(ctx context.Context, sess *storage.Session, payload map[string]any, opts ...LoadOption[T]) (T, error) {
	var zero T

	var lo loadOptions[T]
	for _, opt := range opts {
		opt(&lo)
	}

	values, err := s.check(ctx, sess, payload)
	if err != nil {
		return zero, err
	}

	target := lo.into
	if isNil(target) {
		target, err = s.lookup(ctx, sess, values)
		if err != nil {
			return zero, err
		}
	}

	if !isNil(target) {
		attrs := make(map[string]any, len(values))
		for name, v := range values {
			if f, _ := s.model.Field(name); !f.PrimaryKey {
				attrs[name] = v
			}
		}
		if err := s.model.Assign(target, attrs); err != nil {
			return zero, err
		}
		return target, nil
	}

	rec := s.model.New()
	if err := s.model.Assign(rec, values); err != nil {
		return zero, err
	}
	return rec, nil
}

// check coerces and validates the payload, returning the decoded values of
// the present fields.
func (s *Schema[T]) check(ctx context.Context, sess *storage.Session, payload map[string]any) (map[string]any, error) {
	verr := &ValidationError{}
	values := make(map[string]any, len(payload))
	var present []string

	for _, f := range s.fields {
		raw, ok := payload[f.Name]
		if ok && raw == nil && f.PrimaryKey {
			// a null identifier is the same as none
			ok = false
		}
		if !ok {
			if f.Required() {
				verr.Add(f.Name, MsgRequired)
			}
			continue
		}
		if raw == nil && !f.Nullable() {
			verr.Add(f.Name, MsgNull)
			continue
		}

		v, err := f.Decode(raw)
		if err != nil {
			verr.Add(f.Name, typeMessage(f.Type))
			continue
		}
		values[f.Name] = v.Interface()
		if f.Validate != "" {
			present = append(present, f.Path)
		}
	}

	if len(present) > 0 {
		candidate := s.model.New()
		if err := s.model.Assign(candidate, values); err != nil {
			return nil, err
		}
		if err := s.validate.StructPartial(candidate, present...); err != nil {
			var fieldErrs validator.ValidationErrors
			if !errors.As(err, &fieldErrs) {
				return nil, fmt.Errorf("validate %s: %w", s.model.Name(), err)
			}
			for _, fe := range fieldErrs {
				_, path, _ := strings.Cut(fe.StructNamespace(), ".")
				f, ok := s.byPath[path]
				if !ok {
					continue
				}
				verr.Add(f.Name, ruleMessage(fe))
			}
		}
	}

	if s.validateID && !verr.HasErrors() {
		if err := s.checkIdentifier(ctx, sess, values, verr); err != nil {
			return nil, err
		}
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return values, nil
}

func (s *Schema[T]) checkIdentifier(ctx context.Context, sess *storage.Session, values map[string]any, verr *ValidationError) error {
	id, ok := values["id"]
	if !ok {
		return nil
	}
	if sess == nil {
		return storage.ErrNoSession
	}

	rec, err := s.model.GetByID(ctx, sess.Querier(), id)
	if err != nil {
		return err
	}
	if isNil(rec) {
		verr.Add("id", fmt.Sprintf("Invalid identifier for %s instance", s.model.Name()))
	}
	return nil
}

// lookup returns the existing record addressed by the primary key values,
// nil when any of them is missing.
func (s *Schema[T]) lookup(ctx context.Context, sess *storage.Session, values map[string]any) (T, error) {
	var zero T

	filters := make(map[string]any)
	for _, pk := range s.model.PrimaryKeys() {
		v, ok := values[pk.Name]
		if !ok || v == nil {
			return zero, nil
		}
		filters[pk.Name] = v
	}
	if sess == nil {
		return zero, storage.ErrNoSession
	}
	return s.model.FindBy(ctx, sess.Querier(), filters)
}

// Dump serializes rec by external field name.
func (s *Schema[T]) Dump(rec T) map[string]any {
	if isNil(rec) {
		return nil
	}

	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		v, err := s.model.Get(rec, f.Name)
		if err != nil {
			continue
		}
		out[f.Name] = v
	}
	return out
}

// DumpMany serializes every record, never returning nil.
func (s *Schema[T]) DumpMany(recs []T) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.Dump(rec))
	}
	return out
}

func isNil[T any](v T) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
