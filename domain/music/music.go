// Package music defines the records served by apistub out of the box:
// artists and the albums they released.
package music

import (
	"context"

	"github.com/vitalk/apistub/core/entity"
	"github.com/vitalk/apistub/core/schema"
	"github.com/vitalk/apistub/core/storage"
)

// Artist is a performer or band.
type Artist struct {
	entity.SurrogateID
	Name    string  `db:"name,notnull,index" json:"name" validate:"required,max=128"`
	Country *string `db:"country" json:"country" validate:"omitempty,len=2"`
	Formed  *int    `db:"formed" json:"formed" validate:"omitempty,gte=1900,lte=2100"`
}

// Album is a release by one artist. Deleting the artist deletes its albums.
type Album struct {
	entity.SurrogateID
	ArtistID int64  `db:"artist_id,notnull,ref=artists" json:"artist_id" validate:"required,gt=0"`
	Title    string `db:"title,notnull" json:"title" validate:"required,max=256"`
	Year     *int   `db:"year" json:"year" validate:"omitempty,gte=1900,lte=2100"`
	Tracks   int    `db:"tracks,notnull,default=0" json:"tracks" validate:"gte=0"`
}

var (
	Artists = entity.NewModel[*Artist]()
	Albums  = entity.NewModel[*Album]()

	ArtistSchema = schema.New(Artists)
	AlbumSchema  = schema.New(Albums)
)

// Migrate creates the music tables. Artists come first so album foreign
// keys resolve.
func Migrate(ctx context.Context, db *storage.DB) error {
	if err := Artists.Migrate(ctx, db); err != nil {
		return err
	}
	return Albums.Migrate(ctx, db)
}
