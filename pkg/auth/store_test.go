package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStoreAndRetrieve(t *testing.T) {
	manager, mockStore := NewMockManager()

	require.NoError(t, manager.Store("Example.COM", "Cookie: sid=abc123; cf_clearance=xyz;"))
	assert.Equal(t, 1, mockStore.Count())

	got, err := manager.Retrieve("example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", got.Host)
	assert.Equal(t, "sid=abc123; cf_clearance=xyz", got.Header)
	assert.False(t, got.LastModified.IsZero())
}

func TestManagerFallsBackToParentDomain(t *testing.T) {
	manager, _ := NewMockManager()
	require.NoError(t, manager.Store("example.com", "sid=1"))

	header, err := manager.CookieHeader("cdn.media.example.com")
	require.NoError(t, err)
	assert.Equal(t, "sid=1", header)

	header, err = manager.CookieHeader("other.org")
	require.NoError(t, err)
	assert.Empty(t, header)
}

func TestManagerValidation(t *testing.T) {
	manager, _ := NewMockManager()
	assert.Error(t, manager.Store("", "a=b"))
	assert.Error(t, manager.Store("example.com", "  "))
}

func TestManagerFallsBackWhenFirstStoreFails(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = ErrStoreUnavailable
	backup := NewMockStore()
	manager := NewManagerWithStores(broken, backup)

	require.NoError(t, manager.Store("example.com", "a=b"))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, backup.Count())
}

func TestManagerListMergesNewest(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()
	require.NoError(t, older.Store(&HostCookies{Host: "b.com", Header: "old=1", LastModified: time.Unix(100, 0)}))
	require.NoError(t, newer.Store(&HostCookies{Host: "b.com", Header: "new=1", LastModified: time.Unix(200, 0)}))
	require.NoError(t, newer.Store(&HostCookies{Host: "a.com", Header: "x=1", LastModified: time.Unix(200, 0)}))

	list, err := NewManagerWithStores(older, newer).List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a.com", list[0].Host)
	assert.Equal(t, "new=1", list[1].Header)
}

func TestManagerDelete(t *testing.T) {
	manager, mockStore := NewMockManager()
	require.NoError(t, manager.Store("example.com", "a=b"))

	require.NoError(t, manager.Delete("https://example.com/page"))
	assert.Equal(t, 0, mockStore.Count())
	assert.ErrorIs(t, manager.Delete("example.com"), ErrCookiesNotFound)
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.enc")
	store, err := NewEncryptedFileStoreWithPassphrase(path, "test-passphrase")
	require.NoError(t, err)

	require.NoError(t, store.Store(&HostCookies{Host: "example.com", Header: "sid=secret-value"}))
	require.NoError(t, store.Store(&HostCookies{Host: "other.org", Header: "k=v"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-value")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := store.Retrieve("example.com")
	require.NoError(t, err)
	assert.Equal(t, "sid=secret-value", got.Header)

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)

	wrong, err := NewEncryptedFileStoreWithPassphrase(path, "wrong")
	require.NoError(t, err)
	_, err = wrong.Retrieve("example.com")
	assert.Error(t, err)

	require.NoError(t, store.Delete("example.com"))
	require.NoError(t, store.Delete("other.org"))
	assert.NoFileExists(t, path, "empty store removes its file")
	_, err = store.Retrieve("example.com")
	assert.ErrorIs(t, err, ErrCookiesNotFound)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("AUDIOGRAB_COOKIE_MEDIA_EXAMPLE_COM", "sid=env")
	store := NewEnvironmentStore()

	got, err := store.Retrieve("media.example.com")
	require.NoError(t, err)
	assert.Equal(t, "sid=env", got.Header)

	_, err = store.Retrieve("missing.com")
	assert.ErrorIs(t, err, ErrCookiesNotFound)
	assert.ErrorIs(t, store.Store(&HostCookies{Host: "x"}), ErrStoreUnavailable)

	// read-only backends do not block writes to later stores
	manager := NewManagerWithStores(store, NewMockStore())
	require.NoError(t, manager.Store("x.com", "a=b"))
	header, err := manager.CookieHeader("media.example.com")
	require.NoError(t, err)
	assert.Equal(t, "sid=env", header)
}

func TestNormalizeHost(t *testing.T) {
	tests := map[string]string{
		"Example.com":                    "example.com",
		"https://www.example.com/post/1": "www.example.com",
		"example.com:8443":               "example.com",
		"example.com/path":               "example.com",
		"  ":                             "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeHost(in), in)
	}
}

func TestLookupChain(t *testing.T) {
	assert.Equal(t, []string{"a.b.example.com", "b.example.com", "example.com"}, lookupChain("a.b.example.com"))
	assert.Equal(t, []string{"127.0.0.1"}, lookupChain("127.0.0.1"))
}

func TestMask(t *testing.T) {
	masked := Mask("sid=abcdefghijkl; x=1")
	assert.Equal(t, "sid=abcd...ijkl; x=********", masked)
	assert.False(t, strings.Contains(masked, "efgh"))
}
