// Package inventory keeps an operator-facing record of provisioned agent
// hosts. It is written by the command layer after a run finishes; the
// orchestrator itself persists nothing.
package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// HostRecord describes one provisioned agent host
type HostRecord struct {
	Name          string    `json:"name"`
	AgentName     string    `json:"agent_name"`
	Pool          string    `json:"pool"`
	Provider      string    `json:"provider"`
	ResourceGroup string    `json:"resource_group,omitempty"`
	InstanceID    string    `json:"instance_id,omitempty"`
	PublicIP      string    `json:"public_ip,omitempty"`
	PrivateIP     string    `json:"private_ip,omitempty"`
	AdminUsername string    `json:"admin_username,omitempty"`
	Status        string    `json:"status"` // "provisioned" or "failed"
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Inventory is the collection of known agent hosts
type Inventory struct {
	mu sync.RWMutex

	UpdatedAt time.Time             `json:"updated_at"`
	Hosts     map[string]HostRecord `json:"hosts"`
}

// New creates an empty inventory
func New() *Inventory {
	return &Inventory{
		UpdatedAt: time.Now(),
		Hosts:     make(map[string]HostRecord),
	}
}

// Load loads the inventory from a file; a missing file yields an empty
// inventory so first runs need no setup
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, err
	}

	var inv Inventory
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inventory: %w", err)
	}
	if inv.Hosts == nil {
		inv.Hosts = make(map[string]HostRecord)
	}

	return &inv, nil
}

// Save writes the inventory to a file
func (inv *Inventory) Save(path string) error {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal inventory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write inventory: %w", err)
	}
	return nil
}

// Upsert records or replaces a host by name
func (inv *Inventory) Upsert(record HostRecord) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	inv.Hosts[record.Name] = record
	inv.UpdatedAt = time.Now()
}

// Remove deletes a host by name
func (inv *Inventory) Remove(name string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	delete(inv.Hosts, name)
	inv.UpdatedAt = time.Now()
}

// Get returns a host record by name
func (inv *Inventory) Get(name string) (HostRecord, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	record, ok := inv.Hosts[name]
	return record, ok
}

// List returns all records sorted by host name
func (inv *Inventory) List() []HostRecord {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	records := make([]HostRecord, 0, len(inv.Hosts))
	for _, r := range inv.Hosts {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records
}
