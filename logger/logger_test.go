package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	level  string
	msg    string
	fields map[string]any
}

func (c *captureLogger) Debug(msg string, fields map[string]any) { c.record("debug", msg, fields) }
func (c *captureLogger) Info(msg string, fields map[string]any)  { c.record("info", msg, fields) }
func (c *captureLogger) Warn(msg string, fields map[string]any)  { c.record("warn", msg, fields) }
func (c *captureLogger) Error(msg string, fields map[string]any) { c.record("error", msg, fields) }

func (c *captureLogger) record(level, msg string, fields map[string]any) {
	c.level = level
	c.msg = msg
	c.fields = fields
}

func TestWithAttachesFields(t *testing.T) {
	base := &captureLogger{}
	log := With(base, map[string]any{"payment_id": "pay_1"})

	log.Info("payment completed", map[string]any{"signature": "abc"})
	assert.Equal(t, "info", base.level)
	assert.Equal(t, "payment completed", base.msg)
	assert.Equal(t, map[string]any{"payment_id": "pay_1", "signature": "abc"}, base.fields)

	log.Debug("settlement mismatch", nil)
	assert.Equal(t, "debug", base.level)
	assert.Equal(t, map[string]any{"payment_id": "pay_1"}, base.fields)

	log.Warn("slow lookup", map[string]any{"elapsed_ms": 900})
	assert.Equal(t, "warn", base.level)
	log.Error("lookup failed", nil)
	assert.Equal(t, "error", base.level)
}

func TestWithCallSiteFieldsWin(t *testing.T) {
	base := &captureLogger{}
	log := With(base, map[string]any{"endpoint": "primary", "attempt": 1})

	log.Warn("attempt failed", map[string]any{"attempt": 2})
	assert.Equal(t, map[string]any{"endpoint": "primary", "attempt": 2}, base.fields)
}

func TestWithEmptyFieldsReturnsBase(t *testing.T) {
	base := &captureLogger{}
	require.Same(t, base, With(base, nil))
	require.Same(t, base, With(base, map[string]any{}))
}
