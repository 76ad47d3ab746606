package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"
)

// Direction distinguishes relayed traffic in journal records.
type Direction string

const (
	// DirectionInbound marks messages received from the push backend.
	DirectionInbound Direction = "inbound"
	// DirectionOutbound marks messages handed to the transport for delivery.
	DirectionOutbound Direction = "outbound"
)

// Entry is one journal record describing a relayed message.
type Entry struct {
	LoggedAt  time.Time `json:"logged_at"`
	Direction Direction `json:"direction"`
	Kind      string    `json:"kind"`
	Action    string    `json:"action,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	MessageID string    `json:"message_id,omitempty"`
}

// Stats summarises journal health for monitoring endpoints.
type Stats struct {
	Records       int64
	Bytes         int64
	Rotations     int64
	LastRotateURI string
	LastRotateAt  time.Time
}

// Journal streams relayed-message records into snappy-compressed JSONL files.
// One file stays open per rotation window; Rotate seals it and starts a new one.
type Journal struct {
	mu         sync.Mutex
	dir        string
	now        func() time.Time
	file       *os.File
	stream     *snappy.Writer
	records    int64
	bytes      int64
	rotations  int64
	lastRotate time.Time
	lastURI    string
}

// New opens a journal rooted at dir, creating the first traffic file immediately.
func New(dir string, clock func() time.Time) (*Journal, error) {
	if dir == "" {
		return nil, fmt.Errorf("journal directory must be provided")
	}
	if clock == nil {
		clock = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	j := &Journal{dir: dir, now: clock}
	if err := j.openStreamLocked(); err != nil {
		return nil, err
	}
	return j, nil
}

// Append writes one record to the compressed stream and flushes it so a crash
// loses at most the record being written.
func (j *Journal) Append(entry Entry) error {
	if j == nil {
		return nil
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = j.now().UTC()
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stream == nil {
		return fmt.Errorf("journal closed")
	}
	if _, err := j.stream.Write(line); err != nil {
		return err
	}
	if _, err := j.stream.Write([]byte("\n")); err != nil {
		return err
	}
	j.records++
	j.bytes += int64(len(line)) + 1
	return j.stream.Flush()
}

// Rotate seals the current traffic file and opens a fresh one, returning the
// sealed artifact path. Used by the operational dump endpoint.
func (j *Journal) Rotate() (string, error) {
	if j == nil {
		return "", fmt.Errorf("journal not configured")
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	//1.- Bail out gracefully when nothing has been recorded yet.
	if j.records == 0 {
		return "", fmt.Errorf("no journal records buffered")
	}

	sealed := ""
	if j.file != nil {
		sealed = j.file.Name()
	}
	if err := j.closeStreamLocked(); err != nil {
		return "", err
	}
	if err := j.openStreamLocked(); err != nil {
		return "", err
	}

	j.records = 0
	j.bytes = 0
	j.rotations++
	j.lastRotate = j.now().UTC()
	j.lastURI = sealed
	return sealed, nil
}

// Snapshot returns statistics describing the journal state.
func (j *Journal) Snapshot() Stats {
	if j == nil {
		return Stats{}
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return Stats{
		Records:       j.records,
		Bytes:         j.bytes,
		Rotations:     j.rotations,
		LastRotateURI: j.lastURI,
		LastRotateAt:  j.lastRotate,
	}
}

// Close flushes and releases the active traffic file.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeStreamLocked()
}

func (j *Journal) openStreamLocked() error {
	name := fmt.Sprintf("traffic-%s.jsonl.sz", j.now().UTC().Format("20060102T150405.000Z"))
	path := filepath.Join(j.dir, name)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	j.file = file
	j.stream = snappy.NewBufferedWriter(file)
	return nil
}

func (j *Journal) closeStreamLocked() error {
	var firstErr error
	if j.stream != nil {
		if err := j.stream.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := j.stream.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		j.stream = nil
	}
	if j.file != nil {
		if err := j.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		j.file = nil
	}
	return firstErr
}
