package resource

import "net/http"

// Router accepts resource routes. It is implemented by the HTTP API.
type Router interface {
	AddRoute(rule, name string, h http.Handler)
}

// Registrable is any resource that can be registered on a Router.
type Registrable interface {
	http.Handler
	Route() string
	Name() string
	Methods() []string
	Abstract() bool
}

// Register adds res to api under its route. Abstract resources are skipped
// and reported as not registered.
func Register(api Router, res Registrable) bool {
	if res == nil || res.Abstract() {
		return false
	}
	api.AddRoute(res.Route(), res.Name(), res)
	return true
}

// RegisterAll registers every concrete resource and returns their routes in
// registration order.
func RegisterAll(api Router, resources ...Registrable) []string {
	var routes []string
	for _, res := range resources {
		if Register(api, res) {
			routes = append(routes, res.Route())
		}
	}
	return routes
}
