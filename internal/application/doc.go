// Package application wires the storage, solver, metrics, handlers and HTTP
// server together so cmd/server only parses flags and orchestrates shutdown.
package application
