package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"schack-online/pkg/logger"
)

const gamesFileName = "games.jsonl"

// FileStore appends records as JSON lines to games.jsonl in its directory
type FileStore struct {
	dataDir   string
	gamesFile string
	file      *os.File
}

// NewFileStore creates the data directory and opens the games file for appending
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fs := &FileStore{
		dataDir:   dataDir,
		gamesFile: filepath.Join(dataDir, gamesFileName),
	}

	f, err := os.OpenFile(fs.gamesFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open games file: %w", err)
	}
	fs.file = f

	logger.Archive.Debug("Archiving games to %s", fs.gamesFile)
	return fs, nil
}

// Path returns the games file path
func (fs *FileStore) Path() string {
	return fs.gamesFile
}

// Save appends r as one line
func (fs *FileStore) Save(_ context.Context, r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal game record: %w", err)
	}

	data = append(data, '\n')
	if _, err := fs.file.Write(data); err != nil {
		return fmt.Errorf("failed to write games file: %w", err)
	}
	return nil
}

// Close closes the games file
func (fs *FileStore) Close() error {
	return fs.file.Close()
}

// LoadRecords reads every record in a games file
func LoadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read games file: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("failed to parse game record: %w", err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read games file: %w", err)
	}

	return records, nil
}
