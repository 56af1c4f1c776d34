// Package slots manages the eight fixed chain slots the desk uses to
// address symbols: each slot binds a symbol, a timeframe and a color,
// and exactly one slot is active at a time. Slot assignments persist
// locally; they are UI state, not trading state.
package slots

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const SlotCount = 8

var defaultColors = [SlotCount]string{
	"red", "orange", "yellow", "green", "cyan", "blue", "purple", "magenta",
}

type Slot struct {
	ID        int    `json:"id"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Color     string `json:"color"`
}

type fileState struct {
	Version   int64           `json:"version"`
	UpdatedAt string          `json:"updated_at"`
	Slots     [SlotCount]Slot `json:"slots"`
	Active    int             `json:"active"`
}

// Manager owns slot assignments and the active-slot pointer, with
// atomic persistence to a local JSON file.
type Manager struct {
	mu       sync.RWMutex
	filePath string
	state    fileState
}

func NewManager(filePath string) *Manager {
	m := &Manager{filePath: filePath}
	for i := range m.state.Slots {
		m.state.Slots[i] = Slot{ID: i, Timeframe: "1m", Color: defaultColors[i]}
	}
	return m
}

// Load reads persisted slot state; a missing file keeps the defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read slot state: %w", err)
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("unmarshal slot state: %w", err)
	}
	if st.Active < 0 || st.Active >= SlotCount {
		st.Active = 0
	}
	for i := range st.Slots {
		st.Slots[i].ID = i
		if st.Slots[i].Color == "" {
			st.Slots[i].Color = defaultColors[i]
		}
	}
	m.state = st
	return nil
}

// Save atomically persists slot state via temp file + rename.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveUnsafe()
}

func (m *Manager) saveUnsafe() error {
	m.state.Version++
	m.state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal slot state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.filePath), 0755); err != nil {
		return fmt.Errorf("create slot state dir: %w", err)
	}

	tempPath := m.filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp slot state: %w", err)
	}
	if err := os.Rename(tempPath, m.filePath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename slot state: %w", err)
	}
	return nil
}

// Assign binds a symbol and timeframe to a slot.
func (m *Manager) Assign(id int, symbol, timeframe string) error {
	if id < 0 || id >= SlotCount {
		return fmt.Errorf("slot %d out of range", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Slots[id].Symbol = symbol
	if timeframe != "" {
		m.state.Slots[id].Timeframe = timeframe
	}
	return m.saveUnsafe()
}

// Activate makes the given slot the active one.
func (m *Manager) Activate(id int) error {
	if id < 0 || id >= SlotCount {
		return fmt.Errorf("slot %d out of range", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Active = id
	return m.saveUnsafe()
}

// Active returns the active slot.
func (m *Manager) Active() Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Slots[m.state.Active]
}

// ActiveSymbol is the symbol the confirmation gate evaluates; empty
// when the active slot has no assignment.
func (m *Manager) ActiveSymbol() string {
	return m.Active().Symbol
}

// Slots returns a copy of all slots in order.
func (m *Manager) Slots() [SlotCount]Slot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Slots
}
