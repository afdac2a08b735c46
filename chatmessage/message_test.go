package chatmessage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageType_String(t *testing.T) {
	assert.Equal(t, "Connect", Connect.String())
	assert.Equal(t, "Disconnect", Disconnect.String())
	assert.Equal(t, "Message", Message.String())
	assert.Equal(t, "Notification", Notification.String())
	assert.Equal(t, "Unknown", MessageType(42).String())
}

func TestNew(t *testing.T) {
	before := time.Now().UTC()
	m := New(Message, "hi", "Client")
	after := time.Now().UTC()

	assert.Equal(t, Message, m.Type)
	assert.Equal(t, "hi", m.Content)
	assert.Equal(t, "Client", m.Sender)
	assert.Equal(t, time.UTC, m.Timestamp.Location())
	assert.False(t, m.Timestamp.Before(before))
	assert.False(t, m.Timestamp.After(after))
}

func TestEncode(t *testing.T) {
	t.Run("compact camelCase object", func(t *testing.T) {
		m := ChatMessage{
			Type:      Message,
			Content:   "hello",
			Sender:    "Server",
			Timestamp: time.Date(2024, 3, 1, 12, 30, 45, 123000000, time.UTC),
		}

		got, err := Encode(m)
		require.NoError(t, err)
		assert.Equal(t, `{"type":2,"content":"hello","sender":"Server","timestamp":"2024-03-01T12:30:45.123Z"}`, got)
	})

	t.Run("timestamp is normalized to UTC", func(t *testing.T) {
		zone := time.FixedZone("UTC+3", 3*60*60)
		m := ChatMessage{Type: Notification, Timestamp: time.Date(2024, 3, 1, 15, 0, 0, 0, zone)}

		got, err := Encode(m)
		require.NoError(t, err)
		assert.Contains(t, got, `"timestamp":"2024-03-01T12:00:00Z"`)
	})

	t.Run("no inserted whitespace", func(t *testing.T) {
		got, err := Encode(New(Connect, "a b", "You"))
		require.NoError(t, err)
		assert.NotContains(t, strings.ReplaceAll(got, "a b", ""), " ")
		assert.NotContains(t, got, "\n")
	})
}

func TestDecode_RoundTrip(t *testing.T) {
	messages := []ChatMessage{
		New(Connect, "joined", "Client"),
		New(Disconnect, "", "Server"),
		New(Message, "hi", "Client"),
		New(Notification, "ünïcødé ✓ \"quoted\" <tag>", "You"),
	}

	for _, m := range messages {
		t.Run(m.Type.String(), func(t *testing.T) {
			text, err := Encode(m)
			require.NoError(t, err)

			got := Decode(text)
			require.NotNil(t, got)
			assert.Equal(t, m.Type, got.Type)
			assert.Equal(t, m.Content, got.Content)
			assert.Equal(t, m.Sender, got.Sender)
			assert.True(t, m.Timestamp.Equal(got.Timestamp), "want %v got %v", m.Timestamp, got.Timestamp)
		})
	}
}

func TestDecode_TypeByName(t *testing.T) {
	got := Decode(`{"type":"notification","content":"c","sender":"s","timestamp":"2024-03-01T12:00:00Z"}`)
	require.NotNil(t, got)
	assert.Equal(t, Notification, got.Type)
}

func TestDecode_Malformed(t *testing.T) {
	inputs := map[string]string{
		"not json":          "not json",
		"empty":             "",
		"empty object":      "{}",
		"null":              "null",
		"array":             `[1,2]`,
		"missing timestamp": `{"type":2,"content":"c","sender":"s"}`,
		"null content":      `{"type":2,"content":null,"sender":"s","timestamp":"2024-03-01T12:00:00Z"}`,
		"bad type":          `{"type":9,"content":"c","sender":"s","timestamp":"2024-03-01T12:00:00Z"}`,
		"bad type name":     `{"type":"Shout","content":"c","sender":"s","timestamp":"2024-03-01T12:00:00Z"}`,
		"bad timestamp":     `{"type":2,"content":"c","sender":"s","timestamp":"yesterday"}`,
		"wrong content":     `{"type":2,"content":5,"sender":"s","timestamp":"2024-03-01T12:00:00Z"}`,
		"truncated":         `{"type":2,"content":"c","sen`,
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Nil(t, Decode(in))
			})
		})
	}
}

func TestDecode_ConcatenatedPayloads(t *testing.T) {
	a, err := Encode(New(Message, "one", "Client"))
	require.NoError(t, err)
	b, err := Encode(New(Message, "two", "Client"))
	require.NoError(t, err)

	assert.Nil(t, Decode(a+b))
}

func TestMessageType_UnmarshalJSON(t *testing.T) {
	var mt MessageType
	require.NoError(t, json.Unmarshal([]byte(`1`), &mt))
	assert.Equal(t, Disconnect, mt)

	require.NoError(t, json.Unmarshal([]byte(`"CONNECT"`), &mt))
	assert.Equal(t, Connect, mt)

	assert.Error(t, json.Unmarshal([]byte(`-1`), &mt))
	assert.Error(t, json.Unmarshal([]byte(`true`), &mt))
}
