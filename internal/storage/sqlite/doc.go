// Package sqlite persists finished trajectory artifacts so tracks can be
// queried without re-reading the JSON documents.
//
// Each stored artifact is a run with a generated id. The schema is
// embedded and applied with golang-migrate when the store is opened.
package sqlite
