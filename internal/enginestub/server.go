// Package enginestub is a fake remote trading engine for local runs
// and integration tests: it serves the websocket event stream, the
// command endpoint and the snapshot endpoint with scripted data.
package enginestub

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tknair/confirmdesk/internal/observ"
	"github.com/tknair/confirmdesk/internal/wire"
)

// Server replays scripted events to every stream client and answers
// commands with an acceptance plus a correlated follow-up event.
type Server struct {
	script   []wire.Event
	interval time.Duration
	snapshot wire.Snapshot
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[int]chan []byte
	nextID  int
	seq     int
}

func New(script []wire.Event, snapshot wire.Snapshot, interval time.Duration) *Server {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Server{
		script:   script,
		interval: interval,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[int]chan []byte),
	}
}

// Routes returns the stub's HTTP mux: /stream, /commands, /snapshot.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/commands", s.handleCommand)
	mux.HandleFunc("/snapshot", s.handleSnapshot)
	return mux
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id, ch := s.register()
	defer s.unregister(id)
	observ.Log("stub_client_connected", map[string]any{"client": id})

	// Replay the script, then relay broadcasts. Every third frame
	// packs two records to exercise record splitting on the client.
	go func() {
		for i := 0; i < len(s.script); i++ {
			ev := s.script[i]
			frame, _ := json.Marshal(ev)
			if i%3 == 1 && i+1 < len(s.script) {
				next, _ := json.Marshal(s.script[i+1])
				frame = append(append(frame, '\n'), next...)
				i++
			}
			select {
			case ch <- frame:
			case <-r.Context().Done():
				return
			}
			time.Sleep(s.interval)
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var cmd wire.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "bad command", http.StatusBadRequest)
		return
	}
	observ.Log("stub_command", map[string]any{"id": cmd.ID, "type": cmd.Type})

	// Acknowledge, then emit the correlated event the real engine
	// would produce.
	res := wire.CommandResult{Accepted: true, CommandID: cmd.ID}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res)

	if cmd.Type == wire.CommandConfirmSignal {
		symbol, _ := cmd.Payload["symbol"].(string)
		s.broadcast(wire.Event{
			ID:            s.nextEventID(),
			Type:          wire.EventOrderSubmitted,
			Timestamp:     time.Now().UTC(),
			Symbol:        symbol,
			CorrelationID: cmd.ID,
			Payload: mustJSON(map[string]any{
				"client_order_id": uuid.NewString(),
				"symbol":          symbol,
				"side":            "buy",
				"quantity":        100,
				"order_type":      "limit",
				"command_id":      cmd.ID,
			}),
		})
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshot)
}

func (s *Server) register() (int, chan []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan []byte, 64)
	s.clients[id] = ch
	return id, ch
}

func (s *Server) unregister(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.clients[id]; ok {
		delete(s.clients, id)
		close(ch)
	}
}

func (s *Server) broadcast(ev wire.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.clients {
		select {
		case ch <- frame:
		default:
		}
	}
}

func (s *Server) nextEventID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return fmt.Sprintf("stub-%d", s.seq)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
