package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStoreMissingFileIsEmpty(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "clients.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if store.HasToken("anything") {
		t.Error("Empty store must not validate tokens")
	}
	if len(store.Clients()) != 0 {
		t.Errorf("Expected no clients, got %d", len(store.Clients()))
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.json")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Add("client-1", "Desktop Client", "token-1"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if !reloaded.HasToken("token-1") {
		t.Error("Token should survive a store reload")
	}

	clients := reloaded.Clients()
	if len(clients) != 1 {
		t.Fatalf("Expected 1 client after reload, got %d", len(clients))
	}
	if clients[0].ID != "client-1" || clients[0].Name != "Desktop Client" {
		t.Errorf("Client identity lost across reload: %+v", clients[0])
	}
	if clients[0].PairedAt.IsZero() {
		t.Error("PairedAt should be set")
	}
}

func TestStoreFileOmitsPlaintextToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.json")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	token := "super-secret-token"
	if err := store.Add("client-1", "Desktop Client", token); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read store file: %v", err)
	}
	if strings.Contains(string(data), token) {
		t.Error("Store file must not contain the plaintext token")
	}
	if !strings.Contains(string(data), HashToken(token)) {
		t.Error("Store file should contain the token hash")
	}
}

func TestStoreRemove(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "clients.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store.Add("client-1", "Desktop Client", "token-1"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := store.Remove("client-1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if store.HasToken("token-1") {
		t.Error("Removed client's token must not validate")
	}

	if err := store.Remove("client-1"); err != ErrClientNotFound {
		t.Errorf("Expected ErrClientNotFound, got %v", err)
	}
	if err := store.Remove("never-existed"); err != ErrClientNotFound {
		t.Errorf("Expected ErrClientNotFound for unknown ID, got %v", err)
	}
}
