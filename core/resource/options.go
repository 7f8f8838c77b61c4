package resource

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/vitalk/apistub/core/entity"
)

// Default page sizes of collection resources.
const (
	DefaultPerPage    = 20
	DefaultMaxPerPage = 100
)

// Option configures a Resource.
type Option func(*settings)

type settings struct {
	route      string
	name       string
	methods    []string
	handlers   map[string]any
	query      any
	perPage    int
	maxPerPage int
	logger     zerolog.Logger
}

func newSettings(opts []Option) settings {
	s := settings{
		handlers:   make(map[string]any),
		perPage:    DefaultPerPage,
		maxPerPage: DefaultMaxPerPage,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Route overrides the derived URL rule.
func Route(rule string) Option {
	return func(s *settings) {
		s.route = rule
	}
}

// Name overrides the derived endpoint name.
func Name(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// Methods declares the allowed verbs explicitly instead of deriving them
// from the available handlers.
func Methods(verbs ...string) Option {
	return func(s *settings) {
		if s.methods == nil {
			s.methods = []string{}
		}
		s.methods = append(s.methods, verbs...)
	}
}

// Handle installs fn as the handler of verb, replacing any default.
func Handle[T entity.Record](verb string, fn HandlerFunc[T]) Option {
	return func(s *settings) {
		s.handlers[strings.ToUpper(verb)] = fn
	}
}

// Query narrows and orders the records listed by a collection.
func Query[T entity.Record](fn func(req *Request[T]) ([]entity.QueryOption, error)) Option {
	return func(s *settings) {
		s.query = fn
	}
}

// PerPage sets the default page size of a collection.
func PerPage(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.perPage = n
		}
	}
}

// MaxPerPage caps the page size a client may request with per_page.
func MaxPerPage(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxPerPage = n
		}
	}
}

// Logger sets the logger used for failed requests.
func Logger(logger zerolog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}
