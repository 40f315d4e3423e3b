// Package identity signs and verifies the bearer tokens that carry a caller's
// identity into the auth context.
package identity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/golang-jwt/jwt/v5"
)

// maxRetainedKeys bounds how many rotated-out keys still verify tokens.
const maxRetainedKeys = 10

// KeySet manages the active signing key and verification of past keys.
// Supports key rotation without downtime.
type KeySet interface {
	// Sign creates a signed token with the current active key.
	Sign(ctx context.Context, claims jwt.Claims) (string, error)
	// KeyFunc returns the key for verification based on the token header.
	KeyFunc() jwt.Keyfunc
}

// InMemoryKeySet holds Ed25519 keys in memory.
type InMemoryKeySet struct {
	mu         sync.RWMutex
	currentKID string
	order      []string
	keys       map[string]ed25519.PrivateKey
	seq        atomic.Uint64
}

// NewInMemoryKeySet creates a key set with one freshly generated key.
func NewInMemoryKeySet() (*InMemoryKeySet, error) {
	ks := &InMemoryKeySet{
		keys: make(map[string]ed25519.PrivateKey),
	}
	if err := ks.Rotate(); err != nil {
		return nil, err
	}
	return ks, nil
}

// NewSeededKeySet derives the first key from seed, so separate processes
// sharing the seed verify each other's tokens. Development only.
func NewSeededKeySet(seed string) (*InMemoryKeySet, error) {
	if seed == "" {
		return nil, fmt.Errorf("empty key seed")
	}
	ks := &InMemoryKeySet{
		keys: make(map[string]ed25519.PrivateKey),
	}
	sum := sha256.Sum256([]byte(seed))
	ks.add(ed25519.NewKeyFromSeed(sum[:]))
	return ks, nil
}

// Rotate generates a new active key. The oldest key is evicted once more than
// maxRetainedKeys are held.
func (ks *InMemoryKeySet) Rotate() error {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	ks.add(privateKey)
	return nil
}

func (ks *InMemoryKeySet) add(privateKey ed25519.PrivateKey) {
	kid := fmt.Sprintf("key-%d", ks.seq.Add(1))

	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.keys[kid] = privateKey
	ks.order = append(ks.order, kid)
	ks.currentKID = kid

	for len(ks.order) > maxRetainedKeys {
		delete(ks.keys, ks.order[0])
		ks.order = ks.order[1:]
	}
}

// CurrentKID returns the ID of the active signing key.
func (ks *InMemoryKeySet) CurrentKID() string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.currentKID
}

func (ks *InMemoryKeySet) Sign(_ context.Context, claims jwt.Claims) (string, error) {
	ks.mu.RLock()
	key := ks.keys[ks.currentKID]
	kid := ks.currentKID
	ks.mu.RUnlock()

	if key == nil {
		return "", fmt.Errorf("no active key")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = kid
	return token.SignedString(key)
}

func (ks *InMemoryKeySet) KeyFunc() jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("missing kid in header")
		}

		ks.mu.RLock()
		defer ks.mu.RUnlock()
		key, exists := ks.keys[kid]
		if !exists {
			return nil, fmt.Errorf("key not found: %s", kid)
		}

		return key.Public(), nil
	}
}
