// Package resource serves REST endpoints for record types.
//
// A Resource binds one record model and its schema to a URL rule. Single
// resources address one record by primary key, collections list and create
// records:
//
//	artist := resource.Single(music.Artists, music.ArtistSchema)     // /artists/{pk}
//	artists := resource.Collection(music.Artists, music.ArtistSchema) // /artists
//
//	resource.RegisterAll(api, artist, artists)
//
// Requests are dispatched by verb to the handler of that verb. Verbs outside
// the resource's method set answer 405, declared verbs without a handler 501.
package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/vitalk/apistub/core/convention"
	"github.com/vitalk/apistub/core/entity"
	"github.com/vitalk/apistub/core/schema"
	"github.com/vitalk/apistub/core/storage"
	"github.com/vitalk/apistub/pkg/jsonapi"
)

// Response is the result of a handler. A nil Body writes no body.
type Response struct {
	Status int
	Body   any
}

// HandlerFunc handles one verb of a resource.
type HandlerFunc[T entity.Record] func(req *Request[T]) (Response, error)

// Request is an incoming request bound to its resource and persistence session.
type Request[T entity.Record] struct {
	*http.Request

	Resource *Resource[T]
	Session  *storage.Session
}

// PK returns the primary key segment of the URL.
func (r *Request[T]) PK() string {
	return chi.URLParam(r.Request, convention.PKParam)
}

// Payload decodes the JSON object in the request body.
func (r *Request[T]) Payload() (map[string]any, error) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, jsonapi.ErrBadRequest(fmt.Sprintf("request body must be a JSON object: %v", err))
	}
	if payload == nil {
		return nil, jsonapi.ErrBadRequest("request body must be a JSON object")
	}
	return payload, nil
}

// Resource is a routable endpoint family bound to one record type and one
// schema. It is immutable after construction and safe for concurrent use.
type Resource[T entity.Record] struct {
	model    *entity.Model[T]
	schema   *schema.Schema[T]
	paged    *schema.PagedSchema[T]
	many     bool
	route    string
	name     string
	methods  []string
	handlers map[string]HandlerFunc[T]
	query    func(req *Request[T]) ([]entity.QueryOption, error)

	perPage    int
	maxPerPage int
	logger     zerolog.Logger
}

// Single returns the resource addressing one record by primary key, with
// GET, PUT and DELETE handlers. A nil model makes an abstract resource,
// which is never registered.
func Single[T entity.Record](model *entity.Model[T], s *schema.Schema[T], opts ...Option) *Resource[T] {
	res, cfg := newResource(model, s, false, opts)
	res.setDefault(http.MethodGet, res.Get)
	res.setDefault(http.MethodPut, res.Put)
	res.setDefault(http.MethodDelete, res.Delete)
	res.finish(cfg)
	return res
}

// Collection returns the resource listing records page by page and creating
// new ones, with GET and POST handlers.
func Collection[T entity.Record](model *entity.Model[T], s *schema.Schema[T], opts ...Option) *Resource[T] {
	res, cfg := newResource(model, s, true, opts)
	res.setDefault(http.MethodGet, res.GetMany)
	res.setDefault(http.MethodPost, res.Post)
	res.finish(cfg)
	return res
}

func newResource[T entity.Record](model *entity.Model[T], s *schema.Schema[T], many bool, opts []Option) (*Resource[T], settings) {
	cfg := newSettings(opts)

	res := &Resource[T]{
		model:      model,
		schema:     s,
		many:       many,
		handlers:   make(map[string]HandlerFunc[T]),
		perPage:    cfg.perPage,
		maxPerPage: cfg.maxPerPage,
		logger:     cfg.logger,
	}
	if s != nil {
		res.paged = schema.Paged(s)
	}

	for verb, h := range cfg.handlers {
		fn, ok := h.(HandlerFunc[T])
		if !ok {
			panic(fmt.Sprintf("resource: %s handler has type %T, want %T", verb, h, fn))
		}
		res.handlers[verb] = fn
	}
	if cfg.query != nil {
		fn, ok := cfg.query.(func(req *Request[T]) ([]entity.QueryOption, error))
		if !ok {
			panic(fmt.Sprintf("resource: query hook has type %T", cfg.query))
		}
		res.query = fn
	}
	return res, cfg
}

func (res *Resource[T]) setDefault(verb string, fn HandlerFunc[T]) {
	if _, ok := res.handlers[verb]; !ok {
		res.handlers[verb] = fn
	}
}

// finish derives the method set, route and name once all handlers are known.
func (res *Resource[T]) finish(cfg settings) {
	if res.Abstract() {
		res.methods = []string{}
		return
	}

	typeName := res.model.Name()

	res.route = cfg.route
	if res.route == "" {
		res.route = convention.Route(typeName, res.many)
	}
	res.name = cfg.name
	if res.name == "" {
		res.name = convention.ResourceName(typeName, res.many)
	}

	if cfg.methods != nil {
		res.methods = normalizeMethods(cfg.methods)
		return
	}

	verbs := make([]string, 0, len(res.handlers)+1)
	for verb := range res.handlers {
		verbs = append(verbs, verb)
	}
	if _, ok := res.handlers[http.MethodGet]; ok {
		verbs = append(verbs, http.MethodHead)
	}
	res.methods = normalizeMethods(verbs)
}

// normalizeMethods uppercases, de-duplicates and sorts verbs.
func normalizeMethods(verbs []string) []string {
	seen := make(map[string]bool, len(verbs))
	out := make([]string, 0, len(verbs))
	for _, v := range verbs {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Model returns the bound record model.
func (res *Resource[T]) Model() *entity.Model[T] { return res.model }

// Schema returns the bound schema.
func (res *Resource[T]) Schema() *schema.Schema[T] { return res.schema }

// Many reports whether this is a collection resource.
func (res *Resource[T]) Many() bool { return res.many }

// Abstract reports whether the resource has no model and cannot be served.
func (res *Resource[T]) Abstract() bool { return res == nil || res.model == nil }

// Route returns the URL rule.
func (res *Resource[T]) Route() string { return res.route }

// Name returns the endpoint name.
func (res *Resource[T]) Name() string { return res.name }

// Methods returns the allowed verbs, uppercase and sorted.
func (res *Resource[T]) Methods() []string {
	methods := make([]string, len(res.methods))
	copy(methods, res.methods)
	return methods
}

func (res *Resource[T]) allows(method string) bool {
	for _, m := range res.methods {
		if m == method {
			return true
		}
	}
	return false
}

// ServeHTTP dispatches the request to the handler of its verb.
func (res *Resource[T]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := strings.ToUpper(r.Method)

	if !res.allows(method) {
		jsonapi.WriteMethodNotAllowed(w, method, res.methods)
		return
	}

	h := res.handlers[method]
	if h == nil && method == http.MethodHead {
		h = res.handlers[http.MethodGet]
	}
	if h == nil {
		jsonapi.WriteNotImplemented(w, method)
		return
	}

	sess, err := storage.SessionFrom(r.Context())
	if err != nil {
		res.fail(w, r, err)
		return
	}

	resp, err := h(&Request[T]{Request: r, Resource: res, Session: sess})
	if err != nil {
		res.fail(w, r, err)
		return
	}

	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	if resp.Body == nil || resp.Status == http.StatusNoContent {
		w.WriteHeader(resp.Status)
		return
	}
	jsonapi.WriteJSON(w, resp.Status, resp.Body)
}

// fail translates a handler error into an error response.
func (res *Resource[T]) fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *schema.ValidationError
		apiErr jsonapi.Error
	)
	switch {
	case errors.As(err, &verr):
		jsonapi.WriteValidationErrors(w, verr.Messages)
	case errors.As(err, &apiErr):
		jsonapi.WriteError(w, apiErr)
	case errors.Is(err, entity.ErrPageOutOfRange):
		jsonapi.WriteNotFound(w, "page")
	default:
		e := jsonapi.ErrInternal("")
		res.logger.Error().
			Err(err).
			Str("resource", res.name).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("error_id", e.ID).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
		jsonapi.WriteError(w, e)
	}
}

func isNil[T any](v T) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return true
	}
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
