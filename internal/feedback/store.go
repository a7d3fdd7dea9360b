package feedback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aulavoz/aulavoz/internal/backend"
)

// Record is one submitted satisfaction report as written to the journal.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id"`
	Satisfied bool      `json:"satisfied"`
	Rating    *int      `json:"rating,omitempty"`
	Comments  *string   `json:"comments,omitempty"`
}

// FileStore is an optional local journal of submitted feedback, stored as
// append-only JSON lines. The backend remains the system of record; the
// journal exists so operators can inspect submissions without backend
// access. Safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore that appends to the file at path. The
// file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Append writes one submitted report to the journal.
func (fs *FileStore) Append(report backend.FeedbackReport) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	record := Record{
		Timestamp: time.Now().UTC(),
		SessionID: report.SessionID,
		Satisfied: report.Satisfied,
		Rating:    report.Rating,
		Comments:  report.Comments,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("feedback: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(fs.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("feedback: open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("feedback: write journal: %w", err)
	}
	return nil
}

// Records reads the whole journal back in order. A missing file is an empty
// journal, not an error.
func (fs *FileStore) Records() ([]Record, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, err := os.Open(fs.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("feedback: open journal: %w", err)
	}
	defer f.Close()

	var out []Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("feedback: corrupt journal line %d: %w", len(out)+1, err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("feedback: read journal: %w", err)
	}
	return out, nil
}
