// Package model holds the entities shared by the ingestion, validation,
// draft generation and dispatch stages: periods and their ingest versions,
// normalized location rows, contacts, email drafts and delivery log entries.
package model

import "errors"

// ErrNotFound is returned by stores when the requested entity does not exist.
var ErrNotFound = errors.New("not found")
