// Package auth gates the control socket behind paired-client tokens.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
)

const tokenBytes = 32 // 256-bit tokens

// ErrClientNotFound is returned when revoking a client ID the store does not
// know.
var ErrClientNotFound = errors.New("client not found")

// Manager issues tokens at pairing time and validates them on every
// authenticated command. The control socket is a local unix socket with
// filesystem permissions; tokens exist so a paired desktop client survives
// daemon restarts without re-pairing.
type Manager struct {
	store       *Store
	autoApprove bool
}

// NewManager creates an auth manager over the given store. With autoApprove
// set (test runs), pairing skips the desktop notification.
func NewManager(store *Store, autoApprove bool) *Manager {
	return &Manager{store: store, autoApprove: autoApprove}
}

// Pair registers clientName and returns its token and client ID. The third
// result reports whether the pairing was surfaced to the user via a desktop
// notification.
func (m *Manager) Pair(clientName string) (string, string, bool, error) {
	clientID := newClientID()
	token, err := newToken()
	if err != nil {
		return "", "", false, fmt.Errorf("failed to generate token: %w", err)
	}

	notified := false
	if !m.autoApprove {
		if err := ShowPairingNotification(clientName); err != nil {
			// Pairing proceeds either way; the notification is informational.
			log.Printf("[AUTH] pairing notification: %v", err)
		}
		notified = true
	}

	if err := m.store.Add(clientID, clientName, token); err != nil {
		return "", "", false, fmt.Errorf("failed to store client: %w", err)
	}
	return token, clientID, notified, nil
}

// ValidateToken reports whether token belongs to a paired client.
func (m *Manager) ValidateToken(token string) bool {
	return token != "" && m.store.HasToken(token)
}

// Revoke removes a paired client; its token stops validating immediately.
func (m *Manager) Revoke(clientID string) error {
	return m.store.Remove(clientID)
}

// Clients returns the paired clients.
func (m *Manager) Clients() []Client {
	return m.store.Clients()
}

// HashToken is the storage form of a token: hex SHA-256.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func newClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
