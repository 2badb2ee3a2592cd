package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Client is one paired controller of the daemon.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TokenHash string    `json:"tokenHash"`
	PairedAt  time.Time `json:"pairedAt"`
}

// Store persists paired clients to a JSON file in the daemon's config
// directory and answers token lookups. Only token hashes touch disk; the
// plaintext token exists nowhere but the pairing response.
type Store struct {
	path string

	mu     sync.RWMutex
	byHash map[string]*Client
}

// NewStore opens the client store at path. A missing file is an empty store.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:   path,
		byHash: make(map[string]*Client),
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load client store: %w", err)
	}
	return s, nil
}

// Add registers a paired client under its token.
func (s *Store) Add(id, name, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := HashToken(token)
	s.byHash[hash] = &Client{
		ID:        id,
		Name:      name,
		TokenHash: hash,
		PairedAt:  time.Now(),
	}
	return s.saveLocked()
}

// Remove revokes the client with the given ID.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, c := range s.byHash {
		if c.ID == id {
			delete(s.byHash, hash)
			return s.saveLocked()
		}
	}
	return ErrClientNotFound
}

// HasToken reports whether token belongs to a paired client.
func (s *Store) HasToken(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byHash[HashToken(token)]
	return ok
}

// Clients returns the paired clients.
func (s *Store) Clients() []Client {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]Client, 0, len(s.byHash))
	for _, c := range s.byHash {
		clients = append(clients, *c)
	}
	return clients
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var stored struct {
		Clients []*Client `json:"clients"`
	}
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse client store: %w", err)
	}

	s.byHash = make(map[string]*Client, len(stored.Clients))
	for _, c := range stored.Clients {
		s.byHash[c.TokenHash] = c
	}
	return nil
}

func (s *Store) saveLocked() error {
	stored := struct {
		Clients []*Client `json:"clients"`
	}{
		Clients: make([]*Client, 0, len(s.byHash)),
	}
	for _, c := range s.byHash {
		stored.Clients = append(stored.Clients, c)
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal client store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write client store: %w", err)
	}
	return nil
}
