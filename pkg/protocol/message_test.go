package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeIsValid(t *testing.T) {
	assert.True(t, (&Envelope{Type: "status_update", TaskID: "task-1"}).IsValid())
	assert.False(t, (&Envelope{TaskID: "task-1"}).IsValid())
	assert.False(t, (&Envelope{Type: "status_update"}).IsValid())
}

func TestEnvelopeMarshalJSONFormatsTimestampAsRFC3339Nano(t *testing.T) {
	ts := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	env := &Envelope{Type: "status_update", TaskID: "task-1", Timestamp: ts}

	out, err := env.MarshalJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, ts.Format(time.RFC3339Nano), decoded["timestamp"])
	assert.Equal(t, "status_update", decoded["type"])
}
