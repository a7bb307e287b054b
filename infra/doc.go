// Package infra holds the adapters behind the core interfaces: the SQLite
// store, the workbook reader, mail relays, template rendering, metrics
// sinks and the shared rate limiter. Core packages never import infra.
package infra
