package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONWithServiceName(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "warn", "")

	log.Info("dropped")
	log.Warn("kept", "sessionId", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "kept", entry["msg"])
	require.Equal(t, "mealplanner", entry["service"])
	require.Equal(t, "abc", entry["sessionId"])
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "", "text").Info("hello")
	require.Contains(t, buf.String(), "msg=hello")
	require.Contains(t, buf.String(), "service=mealplanner")
}
