package entity

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/vitalk/apistub/core/storage"
)

var timeType = reflect.TypeOf(time.Time{})

// Field describes one persisted field of a record type.
type Field struct {
	// Name is the external (JSON) name used by schemas and attribute maps.
	Name string

	// Column is the storage column name.
	Column string

	// GoName is the struct field name.
	GoName string

	// Path is the dotted struct field path from the record type,
	// e.g. SurrogateID.ID for promoted fields.
	Path string

	// Type is the Go type of the struct field.
	Type reflect.Type

	// SQLType is the SQLite column type.
	SQLType string

	PrimaryKey bool
	NotNull    bool
	Unique     bool
	Index      bool
	Default    string
	ForeignKey string

	// Validate holds the validator tag of the field.
	Validate string

	// Hidden fields are persisted but never loaded from or dumped to payloads.
	Hidden bool

	index []int
}

// Nullable reports whether the field accepts null values.
func (f Field) Nullable() bool {
	return f.Type.Kind() == reflect.Ptr
}

// Required reports whether payloads must carry the field.
func (f Field) Required() bool {
	for _, rule := range strings.Split(f.Validate, ",") {
		if rule == "required" {
			return true
		}
	}
	return false
}

// ColumnDef returns the storage definition of the field.
func (f Field) ColumnDef() storage.ColumnDef {
	return storage.ColumnDef{
		Name:       f.Column,
		Type:       f.SQLType,
		PrimaryKey: f.PrimaryKey,
		NotNull:    f.NotNull,
		Unique:     f.Unique,
		Index:      f.Index,
		Default:    f.Default,
		ForeignKey: f.ForeignKey,
	}
}

// Decode coerces value into the field's Go type.
// Numbers decoded from JSON arrive as float64 and are truncated into integer
// fields. Numeric strings such as "1999" decode into number fields; any other
// cross-kind conversion is rejected.
func (f Field) Decode(value any) (reflect.Value, error) {
	target := reflect.New(f.Type)
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: target.Interface(),
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.DecodeHookFuncType(numericStringHook),
		),
	})
	if err != nil {
		return reflect.Value{}, err
	}
	if err := decoder.Decode(value); err != nil {
		return reflect.Value{}, err
	}
	return target.Elem(), nil
}

// numericStringHook parses strings bound for number fields. Unparsable
// strings pass through unchanged so the decoder reports the type mismatch.
func numericStringHook(from, to reflect.Type, data any) (any, error) {
	s, ok := data.(string)
	if !ok || from.Kind() != reflect.String {
		return data, nil
	}

	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, err := strconv.ParseInt(s, 10, to.Bits()); err == nil {
			return n, nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n, err := strconv.ParseUint(s, 10, to.Bits()); err == nil {
			return n, nil
		}
	case reflect.Float32, reflect.Float64:
		if n, err := strconv.ParseFloat(s, to.Bits()); err == nil {
			return n, nil
		}
	}
	return data, nil
}

// parseFields walks a struct type and returns its db-tagged fields.
// Anonymous struct fields without a db tag are flattened.
func parseFields(t reflect.Type, parent []int, prefix string) ([]Field, error) {
	var fields []Field

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), parent...), i)
		tag, hasTag := sf.Tag.Lookup("db")

		if sf.Anonymous && !hasTag && sf.Type.Kind() == reflect.Struct {
			nested, err := parseFields(sf.Type, index, prefix+sf.Name+".")
			if err != nil {
				return nil, err
			}
			fields = append(fields, nested...)
			continue
		}

		if !sf.IsExported() || !hasTag || tag == "-" {
			continue
		}

		f, err := parseField(sf, tag, index)
		if err != nil {
			return nil, err
		}
		f.Path = prefix + sf.Name
		fields = append(fields, f)
	}

	return fields, nil
}

func parseField(sf reflect.StructField, tag string, index []int) (Field, error) {
	parts := strings.Split(tag, ",")

	f := Field{
		Column:   parts[0],
		GoName:   sf.Name,
		Type:     sf.Type,
		Validate: sf.Tag.Get("validate"),
		index:    index,
	}
	if f.Column == "" {
		f.Column = strings.ToLower(sf.Name)
	}

	for _, opt := range parts[1:] {
		key, value, _ := strings.Cut(opt, "=")
		switch key {
		case "pk":
			f.PrimaryKey = true
		case "notnull":
			f.NotNull = true
		case "unique":
			f.Unique = true
		case "index":
			f.Index = true
		case "default":
			f.Default = value
		case "ref":
			f.ForeignKey = value
		default:
			return f, fmt.Errorf("field %s: unknown db tag option %q", sf.Name, key)
		}
	}
	if f.Column == "id" {
		f.PrimaryKey = true
	}

	f.Name = f.Column
	if jsonTag, ok := sf.Tag.Lookup("json"); ok {
		name, _, _ := strings.Cut(jsonTag, ",")
		switch name {
		case "-":
			f.Hidden = true
		case "":
		default:
			f.Name = name
		}
	}

	sqlType, err := sqlTypeOf(sf.Type)
	if err != nil {
		return f, fmt.Errorf("field %s: %w", sf.Name, err)
	}
	f.SQLType = sqlType

	return f, nil
}

// sqlTypeOf maps a supported Go type to its SQLite column type.
func sqlTypeOf(t reflect.Type) (string, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return "DATETIME", nil
	}

	switch t.Kind() {
	case reflect.String:
		return "TEXT", nil
	case reflect.Bool:
		return "BOOLEAN", nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "INTEGER", nil
	case reflect.Float32, reflect.Float64:
		return "REAL", nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "BLOB", nil
		}
	}
	return "", fmt.Errorf("unsupported field type %s", t)
}
