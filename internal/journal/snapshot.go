package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"friendlyping/relay/internal/directory"
)

// DirectorySnapshot is the persisted form of the registry contents.
type DirectorySnapshot struct {
	SavedAt string             `json:"saved_at"`
	Clients []directory.Client `json:"clients"`
}

// WriteDirectorySnapshot persists the client list as a zstd-compressed JSON
// document, replacing any previous snapshot at the same path.
func WriteDirectorySnapshot(path string, clients []directory.Client, now time.Time) error {
	if path == "" {
		return fmt.Errorf("snapshot path must be provided")
	}
	snapshot := DirectorySnapshot{
		SavedAt: now.UTC().Format(time.RFC3339Nano),
		Clients: clients,
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	stream, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		return err
	}
	if _, err := stream.Write(data); err != nil {
		stream.Close()
		file.Close()
		return err
	}
	if err := stream.Close(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadDirectorySnapshot loads a snapshot written by WriteDirectorySnapshot.
func ReadDirectorySnapshot(path string) (*DirectorySnapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	stream, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var snapshot DirectorySnapshot
	if err := json.NewDecoder(stream.IOReadCloser()).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snapshot, nil
}
