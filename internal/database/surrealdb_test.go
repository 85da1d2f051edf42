package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Endpoint(t *testing.T) {
	cfg := Config{Host: "db.internal", Port: "8000"}
	assert.Equal(t, "ws://db.internal:8000", cfg.endpoint())

	cfg.TLS = true
	assert.Equal(t, "wss://db.internal:8000", cfg.endpoint())
}

func TestQueryOutcome(t *testing.T) {
	assert.Equal(t, "ok", queryOutcome(nil))
	assert.Equal(t, "rejected", queryOutcome(fmt.Errorf("%w: seat guard", ErrLimitExceeded)))
	assert.Equal(t, "rejected", queryOutcome(fmt.Errorf("%w: email", ErrDuplicate)))
	assert.Equal(t, "rejected", queryOutcome(fmt.Errorf("%w: attendance already recorded", ErrConflict)))
	assert.Equal(t, "error", queryOutcome(errors.New("socket closed")))
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "SELECT * FROM workshop", firstLine("  SELECT * FROM workshop  "))
	assert.Equal(t, "UPDATE workshop SET ...", firstLine("\n\t\tUPDATE workshop SET\n\t\t\tcapacity = $capacity\n"))
}
