// Package database is the data access boundary of the Atelier API.
//
// All persistence is delegated to SurrealDB. The Database interface hides the
// client so repositories only deal in SurrealQL strings and variable maps:
//   - Query returns every statement result, each wrapped as {status, result}
//   - QueryOne unwraps the first record of the first statement
//   - Execute runs mutations and discards the result
//
// Transactions are batch based. TxBuilder and AtomicBatch accumulate
// statements in memory and send them as one BEGIN/COMMIT block, so there is
// no isolation between Add calls.
//
// Errors are wrapped around the sentinels below; test them with errors.Is.
package database

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates a unique index violation.
	ErrDuplicate = errors.New("duplicate record")

	// ErrConnection indicates the database could not be reached.
	ErrConnection = errors.New("database connection error")

	// ErrQuery indicates a statement failed, including schema ASSERT failures.
	ErrQuery = errors.New("query error")

	// ErrLimitExceeded indicates a guard inside a statement rejected the write,
	// for example a full workshop. Guards THROW a message containing
	// LimitExceededMarker.
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrConflict indicates a guard found the record in a state the write
	// must not overwrite. Guards THROW a message containing ConflictMarker.
	ErrConflict = errors.New("state conflict")
)

// Markers guards include in THROW messages
const (
	LimitExceededMarker = "limit_exceeded"
	ConflictMarker      = "state_conflict"
)

// Database defines the operations repositories rely on
type Database interface {
	Connect(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Query executes a query and returns one wrapped result per statement
	Query(ctx context.Context, query string, vars map[string]interface{}) ([]interface{}, error)

	// QueryOne executes a query and returns the first record
	QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error)

	// Execute runs a query without returning results
	Execute(ctx context.Context, query string, vars map[string]interface{}) error
}

// Config holds database connection settings
type Config struct {
	Host      string
	Port      string
	User      string
	Password  string
	Namespace string
	Database  string

	// TLS dials wss:// instead of ws://
	TLS bool
	// SlowQuery logs statements slower than this at warn level; zero disables
	SlowQuery time.Duration
}

func (c Config) endpoint() string {
	scheme := "ws"
	if c.TLS {
		scheme = "wss"
	}
	return scheme + "://" + c.Host + ":" + c.Port
}
