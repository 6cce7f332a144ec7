// Package storage keeps small JSON files between runs.
//
// Discovering the search form's filter options costs a request and the
// options change rarely, so they are cached per registry host as
// filters_<host>.json with a TTL. The default location is the XDG data
// directory (~/.local/share/pulep-events on Linux).
package storage
