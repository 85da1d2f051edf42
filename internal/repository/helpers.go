package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forgo/atelier/internal/database"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// isUniqueConstraintError checks if an error is a unique constraint violation
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, database.ErrDuplicate) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unique") ||
		strings.Contains(errStr, "duplicate") ||
		strings.Contains(errStr, "already exists") ||
		strings.Contains(errStr, "already contains")
}

// notFoundToNil turns ErrNotFound into (nil, nil), the convention for
// missing records.
func notFoundToNil[T any](v *T, err error) (*T, error) {
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

type createdRecord struct {
	ID        string
	CreatedOn time.Time
	UpdatedOn time.Time
}

// extractCreatedRecord reads id and timestamps from the last statement
// that returned a record. Multi-statement queries (LET, IF guards,
// transactions) put the created record last.
func extractCreatedRecord(result []interface{}) (*createdRecord, error) {
	if len(result) == 0 {
		return nil, errors.New("no result returned")
	}

	data := lastRecord(result)
	if data == nil {
		return nil, errors.New("no record created")
	}

	record := &createdRecord{}
	if id, ok := data["id"]; ok {
		record.ID = convertSurrealID(id)
	}
	if t := getTime(data, "created_on"); t != nil {
		record.CreatedOn = *t
	} else if t := getTime(data, "registered_on"); t != nil {
		record.CreatedOn = *t
	}
	if t := getTime(data, "updated_on"); t != nil {
		record.UpdatedOn = *t
	}

	return record, nil
}

// lastRecord scans statement results from the end and returns the first
// record carrying an id.
func lastRecord(result []interface{}) map[string]interface{} {
	for i := len(result) - 1; i >= 0; i-- {
		var candidates []interface{}
		if resp, ok := result[i].(map[string]interface{}); ok {
			if _, wrapped := resp["status"]; wrapped {
				switch r := resp["result"].(type) {
				case []interface{}:
					candidates = r
				case map[string]interface{}:
					candidates = []interface{}{r}
				}
			} else {
				candidates = []interface{}{resp}
			}
		}
		for _, c := range candidates {
			if data, ok := c.(map[string]interface{}); ok {
				if _, hasID := data["id"]; hasID {
					return data
				}
			}
		}
	}
	return nil
}

// unwrapRecord strips the {status, result} envelope and array wrappers
func unwrapRecord(result interface{}) (map[string]interface{}, error) {
	if result == nil {
		return nil, database.ErrNotFound
	}

	if resp, ok := result.(map[string]interface{}); ok {
		if status, ok := resp["status"].(string); ok && status == "OK" {
			if resultData, ok := resp["result"].([]interface{}); ok {
				if len(resultData) == 0 {
					return nil, database.ErrNotFound
				}
				result = resultData[0]
			}
		}
	}

	if arr, ok := result.([]interface{}); ok {
		if len(arr) == 0 {
			return nil, database.ErrNotFound
		}
		result = arr[0]
	}

	data, ok := result.(map[string]interface{})
	if !ok {
		return nil, errors.New("unexpected result format")
	}
	return data, nil
}

// decodeRecord converts a SurrealDB record into out via a JSON round trip.
// id and the named record-link fields are flattened to "table:id" strings
// first. The returned map is the normalized record, for fields the caller
// still needs to read by hand.
func decodeRecord(result interface{}, out interface{}, links ...string) (map[string]interface{}, error) {
	data, err := unwrapRecord(result)
	if err != nil {
		return nil, err
	}

	if id, ok := data["id"]; ok {
		data["id"] = convertSurrealID(id)
	}
	for _, field := range links {
		v, ok := data[field]
		if !ok || v == nil {
			continue
		}
		if arr, ok := v.([]interface{}); ok {
			ids := make([]string, 0, len(arr))
			for _, item := range arr {
				ids = append(ids, convertSurrealID(item))
			}
			data[field] = ids
			continue
		}
		data[field] = convertSurrealID(v)
	}

	// Datetimes are read by hand below; CustomDateTime does not round trip
	// through encoding/json reliably.
	plain := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch v.(type) {
		case models.CustomDateTime, *models.CustomDateTime, time.Time:
			continue
		}
		plain[k] = v
	}

	jsonBytes, err := json.Marshal(plain)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(jsonBytes, out); err != nil {
		return nil, err
	}

	return data, nil
}

// eachRecord calls fn for every record across all statement results
func eachRecord(result []interface{}, fn func(item interface{})) {
	for _, res := range result {
		if resp, ok := res.(map[string]interface{}); ok {
			if resultData, ok := resp["result"].([]interface{}); ok {
				for _, item := range resultData {
					fn(item)
				}
				continue
			}
			if _, hasStatus := resp["status"]; hasStatus {
				continue
			}
		}
		fn(res)
	}
}

// lastStatementRecords returns the records of the final statement, which is
// where multi-statement queries (LET ...; SELECT ...) put their answer.
func lastStatementRecords(result []interface{}) []interface{} {
	if len(result) == 0 {
		return nil
	}
	last := result[len(result)-1]
	if resp, ok := last.(map[string]interface{}); ok {
		if resultData, ok := resp["result"].([]interface{}); ok {
			return resultData
		}
		if r, ok := resp["result"]; ok && r != nil {
			return []interface{}{r}
		}
		return nil
	}
	return []interface{}{last}
}

// extractCount reads a {count: n} row from a GROUP ALL count query
func extractCount(result []interface{}) int {
	rows := lastStatementRecords(result)
	if len(rows) == 0 {
		return 0
	}
	if data, ok := rows[0].(map[string]interface{}); ok {
		return getInt(data, "count")
	}
	return extractCountValue(rows[0])
}

// extractCountValue converts various numeric types to int
func extractCountValue(v interface{}) int {
	switch c := v.(type) {
	case float64:
		return int(c)
	case float32:
		return int(c)
	case int:
		return c
	case int64:
		return int(c)
	case uint64:
		return int(c)
	case uint32:
		return int(c)
	case int32:
		return int(c)
	}
	return 0
}

// getString extracts a string value from a map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// getStringPtr extracts an optional string value from a map
func getStringPtr(m map[string]interface{}, key string) *string {
	if v, ok := m[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

// getInt extracts an int value from a map
func getInt(m map[string]interface{}, key string) int {
	return extractCountValue(m[key])
}

// getBool extracts a bool value from a map
func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

// getTime extracts a time value from a map
func getTime(m map[string]interface{}, key string) *time.Time {
	if v, ok := m[key].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &t
		}
	}
	if t, ok := m[key].(time.Time); ok {
		return &t
	}
	if dt, ok := m[key].(models.CustomDateTime); ok {
		t := dt.Time
		return &t
	}
	if dt, ok := m[key].(*models.CustomDateTime); ok && dt != nil {
		t := dt.Time
		return &t
	}
	return nil
}

// setTime assigns a required time field when present
func setTime(m map[string]interface{}, key string, dst *time.Time) {
	if t := getTime(m, key); t != nil {
		*dst = *t
	}
}

// convertSurrealID converts a SurrealDB ID (which may be a complex object) to a string
func convertSurrealID(id interface{}) string {
	if str, ok := id.(string); ok {
		return str
	}

	if rid, ok := id.(models.RecordID); ok {
		return fmt.Sprintf("%s:%v", rid.Table, rid.ID)
	}
	if rid, ok := id.(*models.RecordID); ok && rid != nil {
		return fmt.Sprintf("%s:%v", rid.Table, rid.ID)
	}

	// Map format: {"tb": "user", "id": {"String": "demo"}} or similar
	if m, ok := id.(map[string]interface{}); ok {
		tb := ""
		idPart := ""

		if t, ok := m["tb"].(string); ok {
			tb = t
		} else if t, ok := m["Table"].(string); ok {
			tb = t
		}

		if idVal, ok := m["id"]; ok {
			idPart = extractIDValue(idVal)
		} else if idVal, ok := m["ID"]; ok {
			idPart = extractIDValue(idVal)
		}

		if tb != "" && idPart != "" {
			return tb + ":" + idPart
		}
		if idPart != "" {
			return idPart
		}
	}

	return fmt.Sprintf("%v", id)
}

// extractIDValue extracts the ID value which may be nested
func extractIDValue(val interface{}) string {
	if str, ok := val.(string); ok {
		return str
	}
	if m, ok := val.(map[string]interface{}); ok {
		if s, ok := m["String"].(string); ok {
			return s
		}
	}
	return fmt.Sprintf("%v", val)
}

// setClause accumulates "field = expr" assignments and their variables
// for dynamic CREATE/UPDATE statements. Optional fields are only added when
// set, since option<T> fields take NONE rather than NULL.
type setClause struct {
	parts []string
	vars  map[string]interface{}
}

func newSetClause() *setClause {
	return &setClause{vars: make(map[string]interface{})}
}

// set assigns $name to field
func (s *setClause) set(field string, value interface{}) *setClause {
	s.parts = append(s.parts, field+" = $"+field)
	s.vars[field] = value
	return s
}

// setRecord assigns type::record($name) to field
func (s *setClause) setRecord(field, id string) *setClause {
	s.parts = append(s.parts, field+" = type::record($"+field+")")
	s.vars[field] = id
	return s
}

// raw appends an expression without a variable, e.g. "updated_on = time::now()"
func (s *setClause) raw(expr string) *setClause {
	s.parts = append(s.parts, expr)
	return s
}

// setDatetime assigns a datetime, sent as RFC 3339 and cast server side
func (s *setClause) setDatetime(field string, t time.Time) *setClause {
	s.parts = append(s.parts, field+" = <datetime>$"+field)
	s.vars[field] = t.UTC().Format(time.RFC3339Nano)
	return s
}

// optString sets field when v is non-nil
func (s *setClause) optString(field string, v *string) *setClause {
	if v != nil {
		s.set(field, *v)
	}
	return s
}

// optRecord sets a record link when id is non-nil and non-empty
func (s *setClause) optRecord(field string, id *string) *setClause {
	if id != nil && *id != "" {
		s.setRecord(field, *id)
	}
	return s
}

func (s *setClause) String() string {
	return strings.Join(s.parts, ", ")
}

func (s *setClause) empty() bool {
	return len(s.parts) == 0
}

// clearable applies an optional string update: nil leaves the field
// untouched, an empty string clears it to NONE.
func (s *setClause) clearable(field string, v *string) *setClause {
	if v == nil {
		return s
	}
	if *v == "" {
		return s.raw(field + " = NONE")
	}
	return s.set(field, *v)
}
