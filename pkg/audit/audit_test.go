package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meta-closure/zerot/pkg/authctx"
)

func TestNewEvent_Actor(t *testing.T) {
	ctx := context.Background()
	ac := &authctx.AuthContext{
		User:    &authctx.User{ID: "u1"},
		Session: &authctx.Session{ID: "s1"},
	}

	evt := NewEvent(ctx, ac, EventMutation, "profile.update", nil)
	assert.Equal(t, "u1", evt.ActorID)
	assert.Equal(t, "s1", evt.SessionID)
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, EventMutation, evt.Type)

	anon := NewEvent(ctx, authctx.Empty(), EventAccess, "profile.read", nil)
	assert.Equal(t, "system", anon.ActorID)
	assert.Empty(t, anon.SessionID)

	nilCtx := NewEvent(ctx, nil, EventAccess, "profile.read", nil)
	assert.Equal(t, "system", nilCtx.ActorID)
	assert.NotEqual(t, anon.ID, nilCtx.ID)
}

func TestInputDigest_FieldOrderIndependent(t *testing.T) {
	a, err := InputDigest(map[string]any{"name": "Ann", "age": 30})
	require.NoError(t, err)
	b, err := InputDigest(json.RawMessage(`{"age":30,"name":"Ann"}`))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "sha256:"))

	c, err := InputDigest(map[string]any{"name": "Bob", "age": 30})
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestInputDigest_Unmarshalable(t *testing.T) {
	_, err := InputDigest(make(chan int))
	assert.Error(t, err)
}

func TestWriterLogger_Record(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	evt := Event{
		ID:        "evt-1",
		ActorID:   "u1",
		Type:      EventMutation,
		Action:    "profile.update",
		Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Metadata:  map[string]any{"contract": "UpdateProfile"},
	}
	require.NoError(t, l.Record(context.Background(), evt))
	require.NoError(t, l.Record(context.Background(), evt))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "AUDIT: "))

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[0], "AUDIT: ")), &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, "UpdateProfile", decoded.Metadata["contract"])
}
