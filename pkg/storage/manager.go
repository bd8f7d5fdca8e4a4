package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"audiograb/pkg/errors"
)

// PartialSuffix marks a download still in progress
const PartialSuffix = ".part"

// Manager handles the output directory and tracks the files it holds
type Manager struct {
	outputDir string
	files     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a new storage manager, creating outputDir if needed
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.IO(outputDir, fmt.Errorf("failed to create output directory: %w", err))
	}

	manager := &Manager{
		outputDir: outputDir,
		files:     make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, errors.IO(outputDir, fmt.Errorf("failed to scan existing files: %w", err))
	}

	return manager, nil
}

// scanExistingFiles records finished files already in the output directory
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), PartialSuffix) {
			continue
		}
		m.files[entry.Name()] = true
	}
	return nil
}

// Path joins name onto the output directory
func (m *Manager) Path(name string) string {
	return filepath.Join(m.outputDir, name)
}

// IsDownloaded checks whether a finished file named name exists
func (m *Manager) IsDownloaded(name string) bool {
	m.mu.RLock()
	cached := m.files[name]
	m.mu.RUnlock()
	if cached {
		if _, err := os.Stat(m.Path(name)); err == nil {
			return true
		}
		m.forget(name)
		return false
	}

	// Double-check file existence, something else may have written it
	if _, err := os.Stat(m.Path(name)); err == nil {
		m.remember(name)
		return true
	}
	return false
}

// Create opens a partial file for name. The previous partial, if any, is truncated.
func (m *Manager) Create(name string) (*Partial, error) {
	p, err := Create(m.Path(name))
	if err != nil {
		return nil, err
	}
	p.manager = m
	p.name = name
	return p, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetDownloadedCount returns the number of finished files known to the manager
func (m *Manager) GetDownloadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

func (m *Manager) remember(name string) {
	m.mu.Lock()
	m.files[name] = true
	m.mu.Unlock()
}

func (m *Manager) forget(name string) {
	m.mu.Lock()
	delete(m.files, name)
	m.mu.Unlock()
}

// Partial is a download being written next to its destination
type Partial struct {
	manager *Manager
	name    string
	dest    string
	file    *os.File
	written int64
	done    bool
}

func (p *Partial) Write(b []byte) (int, error) {
	n, err := p.file.Write(b)
	p.written += int64(n)
	if err != nil {
		return n, errors.IO(p.dest, err)
	}
	return n, nil
}

// Written is the number of bytes written so far
func (p *Partial) Written() int64 {
	return p.written
}

// Destination is the final path the partial is committed to
func (p *Partial) Destination() string {
	return p.dest
}

// Commit closes the partial file and renames it over the destination
func (p *Partial) Commit() error {
	if p.done {
		return nil
	}
	p.done = true

	tmp := p.dest + PartialSuffix
	if err := p.file.Close(); err != nil {
		os.Remove(tmp)
		return errors.IO(p.dest, fmt.Errorf("failed to close file: %w", err))
	}
	if err := os.Rename(tmp, p.dest); err != nil {
		os.Remove(tmp)
		return errors.IO(p.dest, fmt.Errorf("failed to rename partial file: %w", err))
	}

	if p.manager != nil {
		p.manager.remember(p.name)
	}
	return nil
}

// Create opens "<dest>.part" for writing
func Create(dest string) (*Partial, error) {
	f, err := os.Create(dest + PartialSuffix)
	if err != nil {
		return nil, errors.IO(dest, fmt.Errorf("failed to create partial file: %w", err))
	}
	return &Partial{dest: dest, file: f}, nil
}

// Discard closes and deletes the partial file. It is a no-op after Commit.
func (p *Partial) Discard() error {
	if p.done {
		return nil
	}
	p.done = true

	p.file.Close()
	if err := os.Remove(p.dest + PartialSuffix); err != nil && !os.IsNotExist(err) {
		return errors.IO(p.dest, err)
	}
	return nil
}
