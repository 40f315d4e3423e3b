// Package audit records who invoked which contract-guarded operation.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"

	"github.com/meta-closure/zerot/pkg/authctx"
)

// EventType defines the category of the audit event.
type EventType string

const (
	EventAccess   EventType = "ACCESS"
	EventMutation EventType = "MUTATION"
	EventSystem   EventType = "SYSTEM"
)

const systemActor = "system"

// Event represents a structured audit record.
type Event struct {
	ID          string         `json:"id"`
	ActorID     string         `json:"actor_id"`
	SessionID   string         `json:"session_id,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	Type        EventType      `json:"type"`
	Action      string         `json:"action"`
	InputDigest string         `json:"input_digest,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Logger defines the interface for recording audit events.
type Logger interface {
	Record(ctx context.Context, evt Event) error
}

// NewEvent builds an event for the caller in ac. Anonymous callers are
// recorded as "system".
func NewEvent(ctx context.Context, ac *authctx.AuthContext, eventType EventType, action string, metadata map[string]any) Event {
	evt := Event{
		ID:        uuid.New().String(),
		ActorID:   systemActor,
		RequestID: authctx.RequestID(ctx),
		Type:      eventType,
		Action:    action,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}
	if ac.Authenticated() {
		evt.ActorID = ac.UserID()
	}
	if ac != nil && ac.Session != nil {
		evt.SessionID = ac.Session.ID
	}
	return evt
}

// InputDigest returns the hex SHA-256 of v's RFC 8785 canonical JSON, so equal
// inputs yield equal digests regardless of field order.
func InputDigest(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("audit: marshal input: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("audit: canonicalize input: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
