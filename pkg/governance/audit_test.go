package governance

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAuditLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		lines = append(lines, entry)
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestAuditLogger(t *testing.T) {
	t.Run("writes one json line per event", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.jsonl")
		auditor, err := NewAuditLogger(path, true)
		require.NoError(t, err)

		auditor.LogRequest("req-1", "sess-1", "user-1", 42)
		auditor.LogViolation("req-2", "sess-1", "", "prompt_injection", map[string]interface{}{
			"keyword": "ignore previous instructions",
		})
		auditor.LogPIIEvent("req-3", "sess-1", "user-1", 2, []string{"SSN", "PHONE"})
		auditor.LogResponse("req-1", "sess-1", "user-1", 1432, 812.5, true)
		require.NoError(t, auditor.Close())

		lines := readAuditLines(t, path)
		require.Len(t, lines, 4)

		assert.Equal(t, "request", lines[0]["event_type"])
		assert.Equal(t, "req-1", lines[0]["event_id"])
		assert.Equal(t, float64(42), lines[0]["message_length"])

		assert.Equal(t, "violation", lines[1]["event_type"])
		assert.Equal(t, "prompt_injection", lines[1]["violation_type"])
		_, hasUser := lines[1]["user_id"]
		assert.False(t, hasUser, "anonymous events carry no user_id")

		assert.Equal(t, "pii", lines[2]["event_type"])
		assert.Equal(t, float64(2), lines[2]["entity_count"])

		assert.Equal(t, "response", lines[3]["event_type"])
		assert.Equal(t, float64(1432), lines[3]["tokens_used"])
		assert.Equal(t, true, lines[3]["success"])
	})

	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "deeper", "audit.jsonl")
		auditor, err := NewAuditLogger(path, true)
		require.NoError(t, err)
		auditor.LogRequest("req-1", "sess-1", "", 10)
		require.NoError(t, auditor.Close())

		require.Len(t, readAuditLines(t, path), 1)
	})

	t.Run("disabled logger writes nothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.jsonl")
		auditor, err := NewAuditLogger(path, false)
		require.NoError(t, err)
		auditor.LogRequest("req-1", "sess-1", "user-1", 42)
		require.NoError(t, auditor.Close())

		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr), "disabled logger should never open the file")
	})
}
