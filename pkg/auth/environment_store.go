package auth

import (
	"os"
	"strings"
)

// envPrefix is followed by the host upper-cased with dots and dashes as underscores,
// e.g. AUDIOGRAB_COOKIE_EXAMPLE_COM
const envPrefix = "AUDIOGRAB_COOKIE_"

// EnvironmentStore implements CookieStore using environment variables. It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based cookie store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(c *HostCookies) error {
	return ErrStoreUnavailable
}

// Retrieve reads the variable for host
func (e *EnvironmentStore) Retrieve(host string) (*HostCookies, error) {
	if host == "" {
		return nil, ErrInvalidCookies
	}
	header := normalizeHeader(os.Getenv(EnvName(host)))
	if header == "" {
		return nil, ErrCookiesNotFound
	}
	return &HostCookies{Host: host, Header: header}, nil
}

// List returns an entry per AUDIOGRAB_COOKIE_* variable. Hosts are reported in their variable form, lower-cased.
func (e *EnvironmentStore) List() ([]*HostCookies, error) {
	var result []*HostCookies
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, envPrefix) || strings.TrimSpace(value) == "" {
			continue
		}
		host := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(name, envPrefix), "_", "."))
		result = append(result, &HostCookies{Host: host, Header: normalizeHeader(value)})
	}
	return result, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(host string) error {
	return ErrStoreUnavailable
}

// EnvName returns the variable consulted for host
func EnvName(host string) string {
	r := strings.NewReplacer(".", "_", "-", "_")
	return envPrefix + strings.ToUpper(r.Replace(host))
}
