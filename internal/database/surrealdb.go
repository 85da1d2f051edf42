package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/forgo/atelier/internal/metrics"
)

// SurrealDB implements Database over the SurrealDB websocket client
type SurrealDB struct {
	db     *surrealdb.DB
	config Config
}

// NewSurrealDB creates an unconnected SurrealDB handle
func NewSurrealDB(cfg Config) *SurrealDB {
	return &SurrealDB{config: cfg}
}

// Connect dials the server, signs in and selects namespace and database
func (s *SurrealDB) Connect(ctx context.Context) error {
	db, err := surrealdb.FromEndpointURLString(ctx, s.config.endpoint())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	_, err = db.SignIn(ctx, &surrealdb.Auth{
		Username: s.config.User,
		Password: s.config.Password,
	})
	if err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: signin failed: %v", ErrConnection, err)
	}

	if err := db.Use(ctx, s.config.Namespace, s.config.Database); err != nil {
		_ = db.Close(ctx)
		return fmt.Errorf("%w: use failed: %v", ErrConnection, err)
	}

	s.db = db
	return nil
}

// Close closes the connection
func (s *SurrealDB) Close() error {
	if s.db != nil {
		return s.db.Close(context.Background())
	}
	return nil
}

// Ping checks the connection by asking for the server version
func (s *SurrealDB) Ping(ctx context.Context) error {
	if s.db == nil {
		return ErrConnection
	}
	if _, err := s.db.Version(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Query executes a query and returns one {status, result} map per statement
func (s *SurrealDB) Query(ctx context.Context, query string, vars map[string]interface{}) (out []interface{}, err error) {
	if s.db == nil {
		return nil, ErrConnection
	}

	start := time.Now()
	defer func() { s.observe(ctx, query, time.Since(start), err) }()

	results, err := surrealdb.Query[interface{}](ctx, s.db, query, vars)
	if err != nil {
		return nil, classifyError(err.Error())
	}
	if results == nil {
		return nil, nil
	}

	output := make([]interface{}, 0, len(*results))
	var failures []string
	for _, r := range *results {
		if r.Status != "OK" {
			msg := "statement failed"
			if r.Error != nil {
				msg = r.Error.Message
			}
			failures = append(failures, msg)
			continue
		}
		output = append(output, map[string]interface{}{
			"status": r.Status,
			"result": r.Result,
		})
	}
	if len(failures) > 0 {
		return nil, classifyError(rootFailure(failures))
	}

	return output, nil
}

// observe records query latency and reports slow statements. Only the
// first line of the query is logged; variables never are.
func (s *SurrealDB) observe(ctx context.Context, query string, took time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(queryOutcome(err)).Observe(took.Seconds())

	if s.config.SlowQuery > 0 && took >= s.config.SlowQuery {
		slog.WarnContext(ctx, "slow query",
			slog.String("statement", firstLine(query)),
			slog.Duration("took", took),
		)
	}
}

func queryOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrLimitExceeded), errors.Is(err, ErrConflict):
		return "rejected"
	default:
		return "error"
	}
}

func firstLine(query string) string {
	query = strings.TrimSpace(query)
	if i := strings.IndexByte(query, '\n'); i >= 0 {
		return strings.TrimSpace(query[:i]) + " ..."
	}
	return query
}

// rootFailure picks the statement error that caused a transaction to fail.
// The other statements of a cancelled transaction all report the same
// generic message.
func rootFailure(failures []string) string {
	for _, msg := range failures {
		if !strings.Contains(msg, "failed transaction") {
			return msg
		}
	}
	return failures[0]
}

// QueryOne executes a query and returns the first record of the first statement
func (s *SurrealDB) QueryOne(ctx context.Context, query string, vars map[string]interface{}) (interface{}, error) {
	results, err := s.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}
	return FirstRecord(results)
}

// Execute runs a query and discards its result
func (s *SurrealDB) Execute(ctx context.Context, query string, vars map[string]interface{}) error {
	_, err := s.Query(ctx, query, vars)
	return err
}

// FirstRecord unwraps the first record from a Query result
func FirstRecord(results []interface{}) (interface{}, error) {
	if len(results) == 0 {
		return nil, ErrNotFound
	}

	first := results[0]
	if resp, ok := first.(map[string]interface{}); ok {
		if status, ok := resp["status"].(string); ok && status == "OK" {
			if resultData, ok := resp["result"].([]interface{}); ok {
				if len(resultData) == 0 {
					return nil, ErrNotFound
				}
				return resultData[0], nil
			}
			if resp["result"] == nil {
				return nil, ErrNotFound
			}
			return resp["result"], nil
		}
	}

	return first, nil
}

// classifyError maps a SurrealDB error message onto the package sentinels
func classifyError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "already contains"),
		strings.Contains(lower, "already exists"):
		return fmt.Errorf("%w: %s", ErrDuplicate, msg)
	case strings.Contains(lower, LimitExceededMarker):
		return fmt.Errorf("%w: %s", ErrLimitExceeded, msg)
	case strings.Contains(lower, ConflictMarker):
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	default:
		return fmt.Errorf("%w: %s", ErrQuery, msg)
	}
}
