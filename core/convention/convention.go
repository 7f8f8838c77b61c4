// Package convention derives table names, resource names and routes
// from record type names.
package convention

import (
	"regexp"
	"strings"
)

var (
	acronymBoundary = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	wordBoundary    = regexp.MustCompile(`([a-z\d])([A-Z])`)
)

// PKParam is the URL parameter holding the record identifier on
// single-instance routes.
const PKParam = "pk"

// Underscore converts a CamelCase name into its lower-case, underscored form.
//
//	Underscore("Artist")     // "artist"
//	Underscore("AlbumTrack") // "album_track"
//	Underscore("HTTPLog")    // "http_log"
func Underscore(word string) string {
	word = acronymBoundary.ReplaceAllString(word, "${1}_${2}")
	word = wordBoundary.ReplaceAllString(word, "${1}_${2}")
	word = strings.ReplaceAll(word, "-", "_")
	return strings.ToLower(word)
}

// Tableize returns the storage table name for a record type name:
// underscored and pluralized ("AlbumTrack" -> "album_tracks").
func Tableize(typeName string) string {
	return Pluralize(Underscore(typeName))
}

// ResourceName returns the default endpoint name for a record type.
// Single-instance resources use the underscored name, collections
// the underscored plural.
func ResourceName(typeName string, many bool) string {
	name := Underscore(typeName)
	if many {
		return Pluralize(name)
	}
	return name
}

// Route returns the default URL rule for a record type. Collections are
// served at "/<plural>", single instances at "/<plural>/{pk}".
func Route(typeName string, many bool) string {
	collection := "/" + Tableize(typeName)
	if many {
		return collection
	}
	return collection + "/{" + PKParam + ":[0-9]+}"
}
