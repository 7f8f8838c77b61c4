// Package entity provides the persisted record base: a surrogate integer
// identifier, lookup by id, and save/update/delete against an explicit
// storage session.
//
// A record type is a struct with db-tagged fields embedding SurrogateID:
//
//	type Artist struct {
//		entity.SurrogateID
//		Name string `db:"name,notnull" json:"name" validate:"required,max=128"`
//	}
//
//	var Artists = entity.NewModel[*Artist]()
package entity

import "errors"

var (
	// ErrUnknownField is returned when an attribute name is not a field of the model.
	ErrUnknownField = errors.New("unknown field")

	// ErrPageOutOfRange is returned by Paginate for a page past the last one.
	ErrPageOutOfRange = errors.New("page out of range")
)

// Record is implemented by every persisted type.
type Record interface {
	PrimaryKey() int64
	SetPrimaryKey(id int64)
}

// SurrogateID adds an integer primary key column named id.
// Embed it in record structs to implement Record.
type SurrogateID struct {
	ID int64 `db:"id" json:"id"`
}

// PrimaryKey returns the record identifier, zero when not yet persisted.
func (s *SurrogateID) PrimaryKey() int64 {
	return s.ID
}

// SetPrimaryKey assigns the record identifier.
func (s *SurrogateID) SetPrimaryKey(id int64) {
	s.ID = id
}
