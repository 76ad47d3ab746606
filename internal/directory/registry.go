package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// ErrInvalidClient rejects registration of clients with missing fields.
var ErrInvalidClient = errors.New("client is missing required fields")

// Registry maintains the token-addressed set of registered clients. It is the
// only state shared between concurrent inbound handlers, so every accessor is
// safe under concurrent insert and snapshot reads.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	server  Client
}

// NewRegistry constructs a registry seeded with the synthetic server client so
// that pings addressed to the relay itself can be answered directly.
func NewRegistry(server Client) (*Registry, error) {
	if !server.Valid() {
		return nil, fmt.Errorf("server client: %w", ErrInvalidClient)
	}
	r := &Registry{
		clients: make(map[string]Client),
		server:  server,
	}
	r.clients[server.RegistrationToken] = server
	return r, nil
}

// ServerClient returns the synthetic entry representing the relay process.
func (r *Registry) ServerClient() Client {
	if r == nil {
		return Client{}
	}
	return r.server
}

// ServerToken returns the routing address of the relay's own directory entry.
func (r *Registry) ServerToken() string {
	return r.ServerClient().RegistrationToken
}

// Upsert inserts or replaces the client under its registration token.
func (r *Registry) Upsert(client Client) error {
	if r == nil {
		return errors.New("registry not initialised")
	}
	if !client.Valid() {
		return ErrInvalidClient
	}

	r.mu.Lock()
	//1.- Insert-or-replace keeps registration idempotent for repeated tokens.
	r.clients[client.RegistrationToken] = client
	r.mu.Unlock()
	return nil
}

// Get returns the client stored under the token, if any.
func (r *Registry) Get(token string) (Client, bool) {
	if r == nil || token == "" {
		return Client{}, false
	}
	r.mu.RLock()
	client, ok := r.clients[token]
	r.mu.RUnlock()
	return client, ok
}

// Snapshot returns a stable copy of every directory entry, sorted by token so
// repeated snapshots of the same state compare equal.
func (r *Registry) Snapshot() []Client {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	//1.- Copy under the read lock so writers never tear an in-flight snapshot.
	clients := make([]Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	r.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].RegistrationToken < clients[j].RegistrationToken
	})
	return clients
}

// Len reports the number of registered clients, including the server entry.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// LoadSeed preloads directory entries from a JSON file mapping tokens to
// clients. Invalid entries are skipped and reported through the returned count.
func (r *Registry) LoadSeed(path string) (int, error) {
	if r == nil {
		return 0, errors.New("registry not initialised")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var seeded map[string]Client
	if err := json.Unmarshal(data, &seeded); err != nil {
		return 0, fmt.Errorf("decode seed file: %w", err)
	}

	loaded := 0
	for token, client := range seeded {
		if client.RegistrationToken == "" {
			client.RegistrationToken = token
		}
		if err := r.Upsert(client); err != nil {
			continue
		}
		loaded++
	}
	return loaded, nil
}
