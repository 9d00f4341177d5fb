package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientMessageUserMessage(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"user_message","message":"tem bravecto disponível?"}`))
	require.NoError(t, err)

	um, ok := msg.(UserMessage)
	require.True(t, ok, "message type = %T", msg)
	assert.Equal(t, "tem bravecto disponível?", um.Message)
	assert.Empty(t, um.SessionID)
}

func TestParseClientMessageRejectsBlankMessage(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"user_message","message":"   "}`))
	assert.Error(t, err)
}

func TestParseClientMessageControl(t *testing.T) {
	msg, err := ParseClientMessage([]byte(`{"type":"client_control","session_id":"s1","action":"reset"}`))
	require.NoError(t, err)

	control, ok := msg.(ClientControl)
	require.True(t, ok, "message type = %T", msg)
	assert.Equal(t, "s1", control.SessionID)
	assert.Equal(t, ActionReset, control.Action)

	_, err = ParseClientMessage([]byte(`{"type":"client_control","action":"stop"}`))
	assert.Error(t, err)
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestParseClientMessageRejectsGarbage(t *testing.T) {
	_, err := ParseClientMessage([]byte(`not json`))
	assert.Error(t, err)
}

func BenchmarkParseClientMessageUserMessage(b *testing.B) {
	raw := []byte(`{"type":"user_message","message":"qual o preço da amoxicilina"}`)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseClientMessage(raw); err != nil {
			b.Fatal(err)
		}
	}
}
