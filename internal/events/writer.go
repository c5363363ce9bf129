// Package events appends an audit trail of store and fetch activity to a
// JSON-lines log under the data root.
package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const logFileName = "events.log"

type Payload map[string]any

type record struct {
	TS       string  `json:"ts"`
	Type     string  `json:"type"`
	UserID   string  `json:"user_id"`
	EntityID string  `json:"entity_id,omitempty"`
	Payload  Payload `json:"payload"`
}

// Writer appends one JSON line per event. Safe for concurrent use.
type Writer struct {
	Dir string
	Now func() time.Time

	mu sync.Mutex
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{Dir: dir, Now: time.Now}
}

func (w *Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Append writes one event record. Payload may be nil.
func (w *Writer) Append(evtType, userID, entityID string, payload Payload) error {
	if payload == nil {
		payload = Payload{}
	}
	rec := record{
		TS:       w.now().UTC().Format(time.RFC3339),
		Type:     evtType,
		UserID:   userID,
		EntityID: entityID,
		Payload:  payload,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(w.Dir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	return nil
}
