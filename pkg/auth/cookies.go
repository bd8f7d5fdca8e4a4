package auth

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// HostCookies is the Cookie header a browser sends to one host
type HostCookies struct {
	Host         string    `json:"host"`
	Header       string    `json:"header"`
	LastModified time.Time `json:"last_modified"`
}

// CookieStore is the interface for storing and retrieving per-host cookies
type CookieStore interface {
	// Store saves the cookie header for a host
	Store(c *HostCookies) error

	// Retrieve gets the cookie header stored for exactly this host
	Retrieve(host string) (*HostCookies, error)

	// List returns every stored host
	List() ([]*HostCookies, error)

	// Delete removes the cookies stored for a host
	Delete(host string) error
}

// Manager handles cookie storage with fallback mechanisms
type Manager struct {
	stores []CookieStore
}

// NewManager creates a cookie manager backed by the keyring, an encrypted file and the environment, in that order
func NewManager() (*Manager, error) {
	var stores []CookieStore

	// Try keyring first (system keychain)
	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "cookies.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores builds a Manager over explicit backends, tried in order
func NewManagerWithStores(stores ...CookieStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves a host's cookie header in the first store that accepts it
func (m *Manager) Store(host, header string) error {
	host = NormalizeHost(host)
	header = normalizeHeader(header)
	if host == "" {
		return errors.New("host is required")
	}
	if header == "" {
		return errors.New("cookie header is required")
	}

	c := &HostCookies{Host: host, Header: header, LastModified: time.Now()}

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(c); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store cookies: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve finds the cookies for host, trying parent domains when the host itself has none
func (m *Manager) Retrieve(host string) (*HostCookies, error) {
	for _, candidate := range lookupChain(NormalizeHost(host)) {
		for _, store := range m.stores {
			if c, err := store.Retrieve(candidate); err == nil && c != nil {
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCookiesNotFound, host)
}

// CookieHeader returns the stored Cookie header for host, or "" when none is stored
func (m *Manager) CookieHeader(host string) (string, error) {
	c, err := m.Retrieve(host)
	if errors.Is(err, ErrCookiesNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return c.Header, nil
}

// List returns every stored host from all stores, sorted by host
func (m *Manager) List() ([]*HostCookies, error) {
	byHost := make(map[string]*HostCookies)

	for _, store := range m.stores {
		entries, err := store.List()
		if err != nil {
			continue
		}
		for _, c := range entries {
			// Use the most recently modified version
			if existing, ok := byHost[c.Host]; !ok || c.LastModified.After(existing.LastModified) {
				byHost[c.Host] = c
			}
		}
	}

	result := make([]*HostCookies, 0, len(byHost))
	for _, c := range byHost {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Host < result[j].Host })
	return result, nil
}

// Delete removes a host's cookies from all stores
func (m *Manager) Delete(host string) error {
	host = NormalizeHost(host)
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(host); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil && !errors.Is(lastErr, ErrCookiesNotFound) && !errors.Is(lastErr, ErrStoreUnavailable) {
		return fmt.Errorf("failed to delete cookies: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCookiesNotFound, host)
	}
	return nil
}

// NormalizeHost accepts a bare host or a URL and returns the lowercase host name without port
func NormalizeHost(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil {
			return u.Hostname()
		}
	}
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		raw = raw[:i]
	}
	if u, err := url.Parse("//" + raw); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return strings.TrimSuffix(raw, ".")
}

// lookupChain lists host then each parent domain with at least two labels
func lookupChain(host string) []string {
	if host == "" {
		return nil
	}
	chain := []string{host}
	if net.ParseIP(host) != nil {
		return chain
	}
	labels := strings.Split(host, ".")
	for i := 1; i < len(labels)-1; i++ {
		chain = append(chain, strings.Join(labels[i:], "."))
	}
	return chain
}

// normalizeHeader accepts a pasted "Cookie: a=b; c=d" line as well as the bare value
func normalizeHeader(header string) string {
	header = strings.TrimSpace(header)
	if len(header) >= 7 && strings.EqualFold(header[:7], "cookie:") {
		header = strings.TrimSpace(header[7:])
	}
	return strings.TrimSuffix(header, ";")
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "audiograb")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "audiograb")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "audiograb")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "audiograb")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Mask hides all but the cookie names of a header
func Mask(header string) string {
	parts := strings.Split(header, ";")
	for i, p := range parts {
		name, value, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok {
			parts[i] = "********"
			continue
		}
		parts[i] = name + "=" + maskString(value)
	}
	return strings.Join(parts, "; ")
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCookiesNotFound  = errors.New("cookies not found")
	ErrInvalidCookies   = errors.New("invalid cookies")
	ErrStoreUnavailable = errors.New("cookie store unavailable")
)
