// Package ingest decodes the weekly plan and bag workbooks into typed
// records and persists each plan upload as a new version of its period.
//
// The Extractor is a pure decode boundary driven by a fixed column Layout.
// The Service hashes the file, assigns the next version number and writes
// the version together with its rows in one transaction. Diff compares two
// versions row by row on the tracked fields.
package ingest
