package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"audiograb/pkg/logger"
)

// Checkpoint records which pages of a batch list have finished
type Checkpoint struct {
	ListID    string         `json:"list_id"`
	Source    string         `json:"source"`
	Completed map[string]int `json:"completed"` // page URL -> files saved
	Total     int            `json:"total"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Version   int            `json:"version"`
}

// IsPageDone checks if a page already finished in an earlier run
func (c *Checkpoint) IsPageDone(pageURL string) bool {
	_, exists := c.Completed[pageURL]
	return exists
}

// Remaining filters pages down to the ones not yet completed, keeping order
func (c *Checkpoint) Remaining(pages []string) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		if !c.IsPageDone(p) {
			out = append(out, p)
		}
	}
	return out
}

// ListID identifies a batch list by its contents
func ListID(pages []string) string {
	sum := sha256.Sum256([]byte(strings.Join(pages, "\n")))
	return hex.EncodeToString(sum[:8])
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager creates a manager for the list identified by listID under the user data directory
func NewManager(listID string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerAt(filepath.Join(dataDir, "checkpoints"), listID)
}

// NewManagerAt creates a manager storing its file in dir
func NewManagerAt(dir, listID string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, fmt.Sprintf("batch-%s.checkpoint.json", listID)),
		logger:         logger.GetLogger(),
	}, nil
}

// Create starts a fresh checkpoint for a list
func (m *Manager) Create(listID, source string, total int) (*Checkpoint, error) {
	checkpoint := &Checkpoint{
		ListID:    listID,
		Source:    source,
		Completed: make(map[string]int),
		Total:     total,
		CreatedAt: time.Now(),
		Version:   1,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"list_id": listID,
		"path":    m.checkpointPath,
	})
	return checkpoint, nil
}

// Load loads an existing checkpoint. It returns nil, nil when there is none.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Completed == nil {
		checkpoint.Completed = make(map[string]int)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"list_id":    checkpoint.ListID,
		"completed":  len(checkpoint.Completed),
		"updated_at": checkpoint.UpdatedAt,
	})
	return &checkpoint, nil
}

// LoadOrCreate resumes the list's checkpoint or starts a new one
func (m *Manager) LoadOrCreate(listID, source string, total int) (*Checkpoint, error) {
	cp, err := m.Load()
	if err != nil {
		return nil, err
	}
	if cp != nil && cp.ListID == listID {
		return cp, nil
	}
	return m.Create(listID, source, total)
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	// Atomically replace the old checkpoint file
	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"list_id":   checkpoint.ListID,
		"completed": len(checkpoint.Completed),
	})
	return nil
}

// RecordPage marks a page as finished
func (m *Manager) RecordPage(checkpoint *Checkpoint, pageURL string, files int) error {
	checkpoint.Completed[pageURL] = files
	return m.Save(checkpoint)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "audiograb")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "audiograb")
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "audiograb")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "audiograb")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dataDir, nil
}
