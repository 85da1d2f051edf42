package database

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// TxBuilder assembles a BEGIN/COMMIT block and namespaces each statement's
// variables ($email becomes $v3_email) so statements cannot clobber each other.
type TxBuilder struct {
	statements []string
	vars       map[string]interface{}
	counter    int
}

// NewTxBuilder creates an empty transaction builder
func NewTxBuilder() *TxBuilder {
	return &TxBuilder{vars: make(map[string]interface{})}
}

// Add appends a statement, rewriting its variable references
func (tb *TxBuilder) Add(query string, vars map[string]interface{}) {
	tb.counter++
	prefix := fmt.Sprintf("v%d_", tb.counter)

	rewritten := query
	for name, value := range vars {
		pattern := regexp.MustCompile(`\$` + regexp.QuoteMeta(name) + `\b`)
		rewritten = pattern.ReplaceAllString(rewritten, "$$"+prefix+name)
		tb.vars[prefix+name] = value
	}

	tb.statements = append(tb.statements, rewritten)
}

// Len returns the number of statements added so far
func (tb *TxBuilder) Len() int {
	return len(tb.statements)
}

// Build returns the transaction query and merged variables
func (tb *TxBuilder) Build() (string, map[string]interface{}) {
	if len(tb.statements) == 0 {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION;\n")
	for _, stmt := range tb.statements {
		sb.WriteString(strings.TrimSuffix(strings.TrimSpace(stmt), ";"))
		sb.WriteString(";\n")
	}
	sb.WriteString("COMMIT TRANSACTION;")

	return sb.String(), tb.vars
}

// ExecuteTransaction sends a built transaction to the database
func ExecuteTransaction(ctx context.Context, db Database, tb *TxBuilder) ([]interface{}, error) {
	query, vars := tb.Build()
	if query == "" {
		return nil, nil
	}
	return db.Query(ctx, query, vars)
}

// AtomicBatch is a fluent wrapper around TxBuilder for short write sequences:
//
//	err := database.NewAtomicBatch().
//	    Add(updateParticipation, vars1).
//	    Add(promoteEntry, vars2).
//	    Execute(ctx, db)
type AtomicBatch struct {
	builder *TxBuilder
}

// NewAtomicBatch creates an empty batch
func NewAtomicBatch() *AtomicBatch {
	return &AtomicBatch{builder: NewTxBuilder()}
}

// Add appends a statement to the batch
func (ab *AtomicBatch) Add(query string, vars map[string]interface{}) *AtomicBatch {
	ab.builder.Add(query, vars)
	return ab
}

// Execute runs every statement in one transaction
func (ab *AtomicBatch) Execute(ctx context.Context, db Database) error {
	_, err := ExecuteTransaction(ctx, db, ab.builder)
	return err
}

// Len returns the number of statements in the batch
func (ab *AtomicBatch) Len() int {
	return ab.builder.Len()
}
