// Package http contains the HTTP transport layer for the ledger service.
//
// Handlers are thin: they validate URL parameters, delegate to the
// service layer, map service errors onto RFC 7807 problem responses and
// render JSON through chi/render. All business rules live below the
// transport.
package http
