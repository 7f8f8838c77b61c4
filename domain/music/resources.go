package music

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vitalk/apistub/core/convention"
	"github.com/vitalk/apistub/core/entity"
	"github.com/vitalk/apistub/core/resource"
	"github.com/vitalk/apistub/core/schema"
	"github.com/vitalk/apistub/core/storage"
	"github.com/vitalk/apistub/pkg/jsonapi"
)

// MsgUnknownArtist is reported when an album references a missing artist.
const MsgUnknownArtist = "Related artist does not exist."

// Settings tune the generated resources.
type Settings struct {
	PerPage    int
	MaxPerPage int
	Logger     zerolog.Logger
}

// Resources returns every music resource ready for registration:
//
//	/artists                    GET, HEAD, POST
//	/artists/{pk}               GET, HEAD, PUT, DELETE
//	/artists/{pk}/albums        GET, HEAD
//	/albums                     GET, HEAD, POST
//	/albums/{pk}                GET, HEAD, PUT, DELETE
func Resources(s Settings) []resource.Registrable {
	common := []resource.Option{
		resource.PerPage(s.PerPage),
		resource.MaxPerPage(s.MaxPerPage),
		resource.Logger(s.Logger),
	}
	with := func(opts ...resource.Option) []resource.Option {
		return append(append([]resource.Option{}, common...), opts...)
	}

	return []resource.Registrable{
		resource.Single(Artists, ArtistSchema, common...),
		resource.Collection(Artists, ArtistSchema, with(
			resource.Query(filterArtists),
		)...),
		resource.Collection(Albums, AlbumSchema, with(
			resource.Route(convention.Route("Artist", false)+"/albums"),
			resource.Name("artist_albums"),
			resource.Methods(http.MethodGet, http.MethodHead),
			resource.Query(albumsOfArtist),
		)...),
		resource.Single(Albums, AlbumSchema, with(
			resource.Handle(http.MethodPut, updateAlbum),
		)...),
		resource.Collection(Albums, AlbumSchema, with(
			resource.Query(filterAlbums),
			resource.Handle(http.MethodPost, createAlbum),
		)...),
	}
}

// filterArtists supports ?country=XX and ?sort=name.
func filterArtists(req *resource.Request[*Artist]) ([]entity.QueryOption, error) {
	var opts []entity.QueryOption
	q := req.URL.Query()
	if c := q.Get("country"); c != "" {
		opts = append(opts, entity.Where("country", c))
	}
	if q.Get("sort") == "name" {
		opts = append(opts, entity.OrderBy("name", false))
	}
	return opts, nil
}

// filterAlbums supports ?artist_id=N and orders by release year.
func filterAlbums(req *resource.Request[*Album]) ([]entity.QueryOption, error) {
	opts := []entity.QueryOption{entity.OrderBy("year", false)}
	if v := req.URL.Query().Get("artist_id"); v != "" {
		artist, err := Artists.GetByID(req.Context(), req.Session.Querier(), v)
		if err != nil {
			return nil, err
		}
		if artist == nil {
			verr := &schema.ValidationError{}
			verr.Add("artist_id", MsgUnknownArtist)
			return nil, verr
		}
		opts = append(opts, entity.Where("artist_id", artist.ID))
	}
	return opts, nil
}

func albumsOfArtist(req *resource.Request[*Album]) ([]entity.QueryOption, error) {
	artist, err := Artists.GetByID(req.Context(), req.Session.Querier(), req.PK())
	if err != nil {
		return nil, err
	}
	if artist == nil {
		return nil, jsonapi.ErrNotFoundWithID(Artists.Name(), req.PK())
	}
	return []entity.QueryOption{
		entity.Where("artist_id", artist.ID),
		entity.OrderBy("year", false),
	}, nil
}

// createAlbum is the default create handler plus a check that the
// referenced artist exists.
func createAlbum(req *resource.Request[*Album]) (resource.Response, error) {
	payload, err := req.Payload()
	if err != nil {
		return resource.Response{}, err
	}

	album, err := AlbumSchema.Load(req.Context(), req.Session, payload)
	if err != nil {
		return resource.Response{}, err
	}
	return saveAlbum(req, album, http.StatusCreated)
}

func updateAlbum(req *resource.Request[*Album]) (resource.Response, error) {
	inst, err := req.Resource.Instance(req)
	if err != nil {
		return resource.Response{}, err
	}

	payload, err := req.Payload()
	if err != nil {
		return resource.Response{}, err
	}

	album, err := AlbumSchema.Load(req.Context(), req.Session, payload, schema.Into(inst))
	if err != nil {
		return resource.Response{}, err
	}
	return saveAlbum(req, album, http.StatusOK)
}

func saveAlbum(req *resource.Request[*Album], album *Album, status int) (resource.Response, error) {
	if err := checkArtist(req.Context(), req.Session, album.ArtistID); err != nil {
		return resource.Response{}, err
	}

	album, err := Albums.Save(req.Context(), req.Session, album, true)
	if err != nil {
		return resource.Response{}, err
	}
	return resource.Response{Status: status, Body: AlbumSchema.Dump(album)}, nil
}

func checkArtist(ctx context.Context, sess *storage.Session, id int64) error {
	artist, err := Artists.GetByID(ctx, sess.Querier(), id)
	if err != nil {
		return err
	}
	if artist == nil {
		verr := &schema.ValidationError{}
		verr.Add("artist_id", MsgUnknownArtist)
		return verr
	}
	return nil
}
