package state

import (
	"time"

	"github.com/tknair/confirmdesk/internal/observ"
	"github.com/tknair/confirmdesk/internal/wire"
)

// TrackPending records an in-flight command. Display-only: pending
// entries are never merged into orders or positions.
func (s *Store) TrackPending(cmd wire.Command, symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[cmd.ID]; ok {
		return
	}
	s.pending[cmd.ID] = PendingCommand{
		CommandID: cmd.ID,
		Type:      cmd.Type,
		Symbol:    symbol,
		CreatedAt: cmd.Timestamp,
	}
	observ.SetGauge("commands_pending", float64(len(s.pending)), nil)
}

// DropPending removes a pending entry after a send failure.
func (s *Store) DropPending(commandID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, commandID)
	observ.SetGauge("commands_pending", float64(len(s.pending)), nil)
}

// SweepPending removes entries created before the cutoff and returns
// how many were discarded.
func (s *Store) SweepPending(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, pc := range s.pending {
		if pc.CreatedAt.Before(olderThan) {
			delete(s.pending, id)
			n++
		}
	}
	if n > 0 {
		observ.SetGauge("commands_pending", float64(len(s.pending)), nil)
	}
	return n
}

// HasPending reports whether a command of the given type is still in
// flight for symbol. The confirm control stays disabled while one is.
func (s *Store) HasPending(symbol, cmdType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, pc := range s.pending {
		if pc.Symbol == symbol && pc.Type == cmdType {
			return true
		}
	}
	return false
}

// PendingCommands returns a copy of the pending set.
func (s *Store) PendingCommands() []PendingCommand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PendingCommand, 0, len(s.pending))
	for _, pc := range s.pending {
		out = append(out, pc)
	}
	return out
}

// resolvePendingLocked clears the pending entry a correlated event
// refers to. Caller holds s.mu.
func (s *Store) resolvePendingLocked(commandID string) {
	if commandID == "" {
		return
	}
	if _, ok := s.pending[commandID]; !ok {
		return
	}
	delete(s.pending, commandID)
	observ.IncCounter("commands_resolved_total", nil)
	observ.SetGauge("commands_pending", float64(len(s.pending)), nil)
}
