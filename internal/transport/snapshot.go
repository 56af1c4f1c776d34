package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tknair/confirmdesk/internal/wire"
)

// SnapshotClient fetches the engine's full-state snapshot. Used only
// at startup and after a reconnect gap; steady-state updates come off
// the event stream.
type SnapshotClient struct {
	url    string
	client *http.Client
}

func NewSnapshotClient(url string) *SnapshotClient {
	return &SnapshotClient{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *SnapshotClient) Fetch(ctx context.Context) (wire.Snapshot, error) {
	var snap wire.Snapshot

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return snap, fmt.Errorf("snapshot: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return snap, fmt.Errorf("snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("snapshot: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("snapshot: decode: %w", err)
	}
	return snap, nil
}
