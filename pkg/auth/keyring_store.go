package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "audiograb"
	keyringPrefix  = "cookies_"
	// keyringIndex holds the stored host names since keyrings cannot enumerate entries
	keyringIndex = "cookies_index"
)

// KeyringStore implements CookieStore using the system keychain
type KeyringStore struct {
	mu sync.Mutex
}

// NewKeyringStore creates a new keyring-based cookie store
func NewKeyringStore() (*KeyringStore, error) {
	// Test if keyring is available
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves a host's cookies to the system keychain
func (k *KeyringStore) Store(c *HostCookies) error {
	if c == nil || c.Host == "" {
		return ErrInvalidCookies
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Set(keyringService, keyringPrefix+c.Host, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return k.updateIndex(func(hosts map[string]bool) { hosts[c.Host] = true })
}

// Retrieve gets a host's cookies from the system keychain
func (k *KeyringStore) Retrieve(host string) (*HostCookies, error) {
	if host == "" {
		return nil, ErrInvalidCookies
	}

	data, err := keyring.Get(keyringService, keyringPrefix+host)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCookiesNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var c HostCookies
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cookies: %w", err)
	}
	return &c, nil
}

// List returns the hosts recorded in the keychain index
func (k *KeyringStore) List() ([]*HostCookies, error) {
	k.mu.Lock()
	hosts, err := k.readIndex()
	k.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var result []*HostCookies
	for _, host := range hosts {
		if c, err := k.Retrieve(host); err == nil {
			result = append(result, c)
		}
	}
	return result, nil
}

// Delete removes a host's cookies from the system keychain
func (k *KeyringStore) Delete(host string) error {
	if host == "" {
		return ErrInvalidCookies
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if err := keyring.Delete(keyringService, keyringPrefix+host); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCookiesNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return k.updateIndex(func(hosts map[string]bool) { delete(hosts, host) })
}

func (k *KeyringStore) readIndex() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}
	var hosts []string
	if err := json.Unmarshal([]byte(data), &hosts); err != nil {
		return nil, fmt.Errorf("failed to parse keyring index: %w", err)
	}
	return hosts, nil
}

func (k *KeyringStore) updateIndex(change func(map[string]bool)) error {
	current, err := k.readIndex()
	if err != nil {
		return err
	}
	set := make(map[string]bool, len(current))
	for _, h := range current {
		set[h] = true
	}
	change(set)

	hosts := make([]string, 0, len(set))
	for h := range set {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	data, err := json.Marshal(hosts)
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, keyringIndex, string(data)); err != nil {
		return fmt.Errorf("failed to update keyring index: %w", err)
	}
	return nil
}
