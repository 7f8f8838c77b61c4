package resource

import (
	"net/http"

	"github.com/vitalk/apistub/core/entity"
	"github.com/vitalk/apistub/core/schema"
	"github.com/vitalk/apistub/pkg/jsonapi"
)

// Instance returns the record addressed by the URL primary key, or a 404 error.
func (res *Resource[T]) Instance(req *Request[T]) (T, error) {
	rec, err := res.model.GetByID(req.Context(), req.Session.Querier(), req.PK())
	if err != nil {
		return rec, err
	}
	if isNil(rec) {
		return rec, jsonapi.ErrNotFoundWithID(res.model.Name(), req.PK())
	}
	return rec, nil
}

// Get returns the addressed record.
func (res *Resource[T]) Get(req *Request[T]) (Response, error) {
	rec, err := res.Instance(req)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusOK, Body: res.schema.Dump(rec)}, nil
}

// GetMany returns one page of records. The page query parameter selects the
// page and falls back to 1 when missing or invalid.
func (res *Resource[T]) GetMany(req *Request[T]) (Response, error) {
	page, perPage := jsonapi.ParsePageParams(req.URL.Query(), res.perPage, res.maxPerPage)

	var opts []entity.QueryOption
	if res.query != nil {
		var err error
		if opts, err = res.query(req); err != nil {
			return Response{}, err
		}
	}

	p, err := res.model.Paginate(req.Context(), req.Session.Querier(), page, perPage, opts...)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusOK, Body: res.paged.Dump(p)}, nil
}

// Post creates a record from the request body.
func (res *Resource[T]) Post(req *Request[T]) (Response, error) {
	payload, err := req.Payload()
	if err != nil {
		return Response{}, err
	}

	rec, err := res.schema.Load(req.Context(), req.Session, payload)
	if err != nil {
		return Response{}, err
	}
	if rec, err = res.model.Save(req.Context(), req.Session, rec, true); err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusCreated, Body: res.schema.Dump(rec)}, nil
}

// Put replaces the fields of the addressed record with the request body.
// The primary key of the record never changes.
func (res *Resource[T]) Put(req *Request[T]) (Response, error) {
	inst, err := res.Instance(req)
	if err != nil {
		return Response{}, err
	}

	payload, err := req.Payload()
	if err != nil {
		return Response{}, err
	}

	rec, err := res.schema.Load(req.Context(), req.Session, payload, schema.Into(inst))
	if err != nil {
		return Response{}, err
	}
	if rec, err = res.model.Save(req.Context(), req.Session, rec, true); err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusOK, Body: res.schema.Dump(rec)}, nil
}

// Delete removes the addressed record.
func (res *Resource[T]) Delete(req *Request[T]) (Response, error) {
	inst, err := res.Instance(req)
	if err != nil {
		return Response{}, err
	}
	if err := res.model.Delete(req.Context(), req.Session, inst, true); err != nil {
		return Response{}, err
	}
	return Response{Status: http.StatusNoContent}, nil
}
