package slots

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "slots.json"))

	all := m.Slots()
	for i, s := range all {
		if s.ID != i {
			t.Errorf("slot %d: got id %d", i, s.ID)
		}
		if s.Symbol != "" {
			t.Errorf("slot %d: expected no symbol, got %q", i, s.Symbol)
		}
		if s.Timeframe != "1m" {
			t.Errorf("slot %d: got timeframe %q", i, s.Timeframe)
		}
		if s.Color == "" {
			t.Errorf("slot %d: missing color", i)
		}
	}
	if got := m.Active().ID; got != 0 {
		t.Errorf("active slot defaults to 0, got %d", got)
	}
	if m.ActiveSymbol() != "" {
		t.Errorf("unassigned active slot must have empty symbol")
	}
}

func TestAssignActivatePersistRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.json")

	m := NewManager(path)
	if err := m.Assign(3, "NVDA", "5m"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := m.Assign(5, "AMD", ""); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := m.Activate(3); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if m.ActiveSymbol() != "NVDA" {
		t.Fatalf("active symbol: got %q, want NVDA", m.ActiveSymbol())
	}

	// A fresh manager must see the persisted state.
	m2 := NewManager(path)
	if err := m2.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := m2.Active(); got.ID != 3 || got.Symbol != "NVDA" || got.Timeframe != "5m" {
		t.Fatalf("loaded active slot = %+v", got)
	}
	if got := m2.Slots()[5]; got.Symbol != "AMD" || got.Timeframe != "1m" {
		t.Fatalf("empty timeframe must keep the default: %+v", got)
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope", "slots.json"))
	if err := m.Load(); err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	if m.Active().ID != 0 {
		t.Fatalf("defaults must survive a missing file")
	}
}

func TestLoadClampsActiveAndRepairsSlots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.json")
	raw := `{"version":7,"slots":[{"id":9,"symbol":"TSLA"},{},{},{},{},{},{},{}],"active":42}`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(path)
	if err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Active().ID != 0 {
		t.Errorf("out-of-range active must clamp to 0, got %d", m.Active().ID)
	}
	s := m.Slots()[0]
	if s.ID != 0 || s.Symbol != "TSLA" || s.Color == "" {
		t.Errorf("slot 0 not repaired: %+v", s)
	}
}

func TestAssignOutOfRange(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "slots.json"))
	if err := m.Assign(8, "NVDA", "1m"); err == nil {
		t.Fatal("expected error for slot 8")
	}
	if err := m.Activate(-1); err == nil {
		t.Fatal("expected error for slot -1")
	}
}

func TestSaveBumpsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.json")
	m := NewManager(path)
	if err := m.Save(); err != nil {
		t.Fatal(err)
	}
	if err := m.Assign(0, "NVDA", ""); err != nil {
		t.Fatal(err)
	}

	m2 := NewManager(path)
	if err := m2.Load(); err != nil {
		t.Fatal(err)
	}
	if m2.state.Version != 2 {
		t.Fatalf("version = %d, want 2", m2.state.Version)
	}
}
