package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	log := New("not-a-level")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestAudit_WritesStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("debug", &buf)

	log.Audit("user-1", "create_appointment", "appointment", true, map[string]interface{}{"appointment_id": "apt-1"})

	entry := decodeLine(t, &buf)
	assert.Equal(t, "Audit event", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, true, entry["audit"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestAudit_FailureIsWarning(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("debug", &buf)

	log.Audit("user-1", "cancel_appointment", "appointment", false, nil)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "warning", entry["level"])
}

func TestWithContext_PicksUpRequestFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("debug", &buf)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")
	ctx = context.WithValue(ctx, UserIDKey, "user-7")
	log.WithContext(ctx).Info("hello")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "user-7", entry["user_id"])
	assert.NotContains(t, entry, "trace_id")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("debug", &buf)

	log.WithComponent("scheduling").Info("ready")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "scheduling", entry["component"])
}
