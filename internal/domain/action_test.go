package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateMemoryKeepsAgentData(t *testing.T) {
	payload := json.RawMessage(`{"type":"promise","data":{"madeToCharacterId":"marco-rossi","content":"You start next match"}}`)
	a, err := ParseAction("update_memory", payload)
	require.NoError(t, err)
	require.NotNil(t, a.UpdateMemory.Promise)
	assert.Equal(t, "marco-rossi", a.UpdateMemory.Promise.MadeToCharacterID)

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"update_memory","payload":{"type":"promise","data":{"madeToCharacterId":"marco-rossi","content":"You start next match"}}}`, string(out))

	var back Action
	require.NoError(t, json.Unmarshal(out, &back))
	assert.JSONEq(t, string(a.UpdateMemory.Data), string(back.UpdateMemory.Data))
}

func TestUpdateMemoryValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		field   string
	}{
		{"unknown kind", `{"type":"rumour","data":{"content":"x"}}`, "payload.type"},
		{"promise without target", `{"type":"promise","data":{"content":"x"}}`, "payload.data.madeToCharacterId"},
		{"knowledge without content", `{"type":"knowledge","data":{"characterId":"marco-rossi"}}`, "payload.data.content"},
		{"missing data", `{"type":"knowledge"}`, "payload"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAction("update_memory", json.RawMessage(tc.payload))
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}
