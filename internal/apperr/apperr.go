// Package apperr defines the error kinds shared across the cache fleet.
//
// Kinds are sentinel values, not types: callers wrap them with fmt.Errorf's
// %w at the point of origin and inspect them with errors.Is at the HTTP
// boundary, the same wrap-at-origin/inspect-at-boundary shape the teacher
// uses for classifying retriable connection errors.
package apperr

import "errors"

var (
	// NotFound: key absent in cache and store, or node not in ring.
	NotFound = errors.New("not found")
	// InvalidArgument: non-positive capacity, or an attempt to auto-start a remote worker.
	InvalidArgument = errors.New("invalid argument")
	// ServiceUnavailable: router not initialised, or the ring is empty.
	ServiceUnavailable = errors.New("service unavailable")
	// Internal: a durable-store write failed.
	Internal = errors.New("internal error")
	// BadRequest: chaos start attempted with too few nodes in the ring.
	BadRequest = errors.New("bad request")
	// Transport: a worker RPC timed out or the connection failed. Never
	// surfaces directly to a router caller: reads fold it into a cache
	// miss, writes fold it into a failed_replications entry.
	Transport = errors.New("transport error")
	// Partitioned: the partition map blocked a call. Indistinguishable from
	// Transport to callers of a replica Put, but tagged distinctly in
	// failed_replications.reason.
	Partitioned = errors.New("partitioned")
)
