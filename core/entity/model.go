package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/vitalk/apistub/core/convention"
	"github.com/vitalk/apistub/core/storage"
)

// Model holds the storage metadata of record type T and implements the
// record lifecycle against explicit sessions. A Model is immutable after
// construction and safe for concurrent use.
type Model[T Record] struct {
	name    string
	table   string
	typ     reflect.Type
	fields  []Field
	byName  map[string]int
	pk      []int
	columns string
}

// ModelOption configures a Model.
type ModelOption func(*modelOptions)

type modelOptions struct {
	name  string
	table string
}

// WithTable overrides the derived table name.
func WithTable(table string) ModelOption {
	return func(o *modelOptions) {
		o.table = table
	}
}

// WithName overrides the record type name used for derivation and messages.
func WithName(name string) ModelOption {
	return func(o *modelOptions) {
		o.name = name
	}
}

// NewModel builds the model of record type T, which must be a pointer to a
// struct. It panics when the struct cannot be mapped, so mistakes surface at
// program start.
func NewModel[T Record](opts ...ModelOption) *Model[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("entity: record type %s must be a pointer to a struct", t))
	}
	t = t.Elem()

	o := modelOptions{name: t.Name()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.table == "" {
		o.table = convention.Tableize(o.name)
	}

	fields, err := parseFields(t, nil, "")
	if err != nil {
		panic(fmt.Sprintf("entity: %s: %v", t, err))
	}

	m := &Model[T]{
		name:   o.name,
		table:  o.table,
		typ:    t,
		fields: fields,
		byName: make(map[string]int, len(fields)),
	}

	cols := make([]string, len(fields))
	for i, f := range fields {
		if _, dup := m.byName[f.Name]; dup {
			panic(fmt.Sprintf("entity: %s: duplicate field %q", t, f.Name))
		}
		m.byName[f.Name] = i
		cols[i] = f.Column
		if f.PrimaryKey {
			m.pk = append(m.pk, i)
		}
	}
	if len(m.pk) != 1 || fields[m.pk[0]].Column != "id" {
		panic(fmt.Sprintf("entity: %s: record needs exactly one primary key column named id", t))
	}
	m.columns = strings.Join(cols, ", ")

	return m
}

// Name returns the record type name.
func (m *Model[T]) Name() string { return m.name }

// Table returns the storage table name.
func (m *Model[T]) Table() string { return m.table }

// Fields returns the persisted fields in declaration order.
func (m *Model[T]) Fields() []Field {
	return append([]Field(nil), m.fields...)
}

// Field returns the field with the given external name.
func (m *Model[T]) Field(name string) (Field, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Field{}, false
	}
	return m.fields[i], true
}

// PrimaryKeys returns the primary key fields.
func (m *Model[T]) PrimaryKeys() []Field {
	pks := make([]Field, len(m.pk))
	for i, idx := range m.pk {
		pks[i] = m.fields[idx]
	}
	return pks
}

// Columns returns the storage definition of every field.
func (m *Model[T]) Columns() []storage.ColumnDef {
	defs := make([]storage.ColumnDef, len(m.fields))
	for i, f := range m.fields {
		defs[i] = f.ColumnDef()
	}
	return defs
}

// CreateTableSQL returns the DDL of the model table.
func (m *Model[T]) CreateTableSQL() string {
	return storage.BuildCreateTableSQL(m.table, m.Columns())
}

// Migrate creates the model table if it does not exist.
func (m *Model[T]) Migrate(ctx context.Context, db *storage.DB) error {
	return db.CreateTable(ctx, m.table, m.Columns())
}

// New returns a zero record.
func (m *Model[T]) New() T {
	return reflect.New(m.typ).Interface().(T)
}

// Get returns the value of the named field of rec.
func (m *Model[T]) Get(rec T, name string) (any, error) {
	f, ok := m.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, m.name, name)
	}
	return m.value(rec, f).Interface(), nil
}

// Assign sets the named fields of rec, coercing each value to the field type.
// Nothing is assigned when any name is unknown or any value fails to coerce.
func (m *Model[T]) Assign(rec T, values map[string]any) error {
	decoded := make(map[int]reflect.Value, len(values))
	for name, value := range values {
		i, ok := m.byName[name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, m.name, name)
		}
		v, err := m.fields[i].Decode(value)
		if err != nil {
			return fmt.Errorf("assign %s.%s: %w", m.name, name, err)
		}
		decoded[i] = v
	}

	for i, v := range decoded {
		m.value(rec, m.fields[i]).Set(v)
	}
	return nil
}

func (m *Model[T]) value(rec T, f Field) reflect.Value {
	return reflect.ValueOf(rec).Elem().FieldByIndex(f.index)
}

// Save registers rec with the session: records without an id are inserted and
// receive a generated one, records with an id are inserted or replaced. When
// commit is set the session is committed and any persistence error surfaces.
func (m *Model[T]) Save(ctx context.Context, sess *storage.Session, rec T, commit bool) (T, error) {
	if err := m.persist(ctx, sess, rec); err != nil {
		return rec, err
	}
	if commit {
		if err := sess.Commit(); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// Update assigns attrs to rec and saves it with the given commit flag.
func (m *Model[T]) Update(ctx context.Context, sess *storage.Session, rec T, attrs map[string]any, commit bool) (T, error) {
	if err := m.Assign(rec, attrs); err != nil {
		return rec, err
	}
	return m.Save(ctx, sess, rec, commit)
}

// Delete removes rec within the session, committing when asked.
func (m *Model[T]) Delete(ctx context.Context, sess *storage.Session, rec T, commit bool) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", m.table)
	if _, err := sess.Exec(ctx, m.table, "delete", query, rec.PrimaryKey()); err != nil {
		return fmt.Errorf("delete %s %d: %w", m.name, rec.PrimaryKey(), err)
	}
	if commit {
		return sess.Commit()
	}
	return nil
}

func (m *Model[T]) persist(ctx context.Context, sess *storage.Session, rec T) error {
	var (
		columns []string
		values  []any
		updates []string
	)
	for _, f := range m.fields {
		if f.PrimaryKey {
			continue
		}
		columns = append(columns, f.Column)
		values = append(values, m.value(rec, f).Interface())
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", f.Column, f.Column))
	}

	id := rec.PrimaryKey()
	if id == 0 {
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			m.table, strings.Join(columns, ", "), placeholders(len(columns)))
		if len(columns) == 0 {
			query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES", m.table)
		}

		res, err := sess.Exec(ctx, m.table, "insert", query, values...)
		if err != nil {
			return fmt.Errorf("insert %s: %w", m.name, err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert %s: last insert id: %w", m.name, err)
		}
		rec.SetPrimaryKey(newID)
		return nil
	}

	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) %s",
		m.table, strings.Join(append([]string{"id"}, columns...), ", "),
		placeholders(len(columns)+1), conflict)

	if _, err := sess.Exec(ctx, m.table, "save", query, append([]any{id}, values...)...); err != nil {
		return fmt.Errorf("save %s %d: %w", m.name, id, err)
	}
	return nil
}

// String returns a debug representation listing every column value,
// e.g. <Artist(id=5, name="X")>.
func (m *Model[T]) String(rec T) string {
	if reflect.ValueOf(rec).IsNil() {
		return fmt.Sprintf("<%s(nil)>", m.name)
	}

	parts := make([]string, len(m.fields))
	for i, f := range m.fields {
		v := m.value(rec, f)
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				parts[i] = f.Column + "=nil"
				continue
			}
			v = v.Elem()
		}
		if v.Kind() == reflect.String {
			parts[i] = fmt.Sprintf("%s=%q", f.Column, v.String())
			continue
		}
		parts[i] = fmt.Sprintf("%s=%v", f.Column, v.Interface())
	}
	return fmt.Sprintf("<%s(%s)>", m.name, strings.Join(parts, ", "))
}

func (m *Model[T]) scan(row interface{ Scan(...any) error }) (T, error) {
	rec := m.New()
	v := reflect.ValueOf(rec).Elem()

	dest := make([]any, len(m.fields))
	for i, f := range m.fields {
		dest[i] = v.FieldByIndex(f.index).Addr().Interface()
	}

	if err := row.Scan(dest...); err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

func (m *Model[T]) queryOne(ctx context.Context, q storage.Querier, where string, args ...any) (T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s LIMIT 1", m.columns, m.table, where)

	rec, err := m.scan(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, nil
	}
	if err != nil {
		return rec, fmt.Errorf("query %s: %w", m.name, err)
	}
	return rec, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
