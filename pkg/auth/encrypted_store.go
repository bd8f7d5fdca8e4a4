package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize       = 32
	keySize        = 32
	kdfIterations  = 100000
	vaultVersion   = 1
	passphraseFile = ".passphrase"
)

// EncryptedFileStore implements CookieStore using an AES-GCM encrypted file keyed by pbkdf2
type EncryptedFileStore struct {
	path       string
	passphrase []byte
	mu         sync.RWMutex
}

// vault is the on-disk layout. Sealed holds nonce||ciphertext of the JSON host map.
type vault struct {
	Version  int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Sealed   []byte    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// NewEncryptedFileStore creates an encrypted file store. The passphrase comes from AUDIOGRAB_PASSPHRASE or a generated key file.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	passphrase, err := loadPassphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return NewEncryptedFileStoreWithPassphrase(path, passphrase)
}

// NewEncryptedFileStoreWithPassphrase creates an encrypted file store with an explicit passphrase
func NewEncryptedFileStoreWithPassphrase(path, passphrase string) (*EncryptedFileStore, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: []byte(passphrase)}, nil
}

func (e *EncryptedFileStore) Store(c *HostCookies) error {
	if c == nil || c.Host == "" {
		return ErrInvalidCookies
	}
	return e.update(func(hosts map[string]HostCookies) error {
		hosts[c.Host] = *c
		return nil
	})
}

func (e *EncryptedFileStore) Retrieve(host string) (*HostCookies, error) {
	if host == "" {
		return nil, ErrInvalidCookies
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	hosts, _, err := e.read()
	if err != nil {
		return nil, err
	}
	c, ok := hosts[host]
	if !ok {
		return nil, ErrCookiesNotFound
	}
	return &c, nil
}

// List returns every stored host in name order
func (e *EncryptedFileStore) List() ([]*HostCookies, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	hosts, _, err := e.read()
	if err != nil {
		return nil, err
	}
	out := make([]*HostCookies, 0, len(hosts))
	for _, c := range hosts {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out, nil
}

func (e *EncryptedFileStore) Delete(host string) error {
	if host == "" {
		return ErrInvalidCookies
	}
	return e.update(func(hosts map[string]HostCookies) error {
		if _, ok := hosts[host]; !ok {
			return ErrCookiesNotFound
		}
		delete(hosts, host)
		return nil
	})
}

// update applies fn to the decrypted hosts and writes the result back.
// An empty map removes the file.
func (e *EncryptedFileStore) update(fn func(map[string]HostCookies) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	hosts, salt, err := e.read()
	if err != nil {
		return err
	}
	if err := fn(hosts); err != nil {
		return err
	}
	if len(hosts) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove cookie file: %w", err)
		}
		return nil
	}
	return e.write(hosts, salt)
}

// read returns the stored hosts and the file's salt. A missing file is an empty store with no salt.
func (e *EncryptedFileStore) read() (map[string]HostCookies, []byte, error) {
	hosts := make(map[string]HostCookies)

	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return hosts, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var v vault
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, nil, fmt.Errorf("failed to parse cookie file: %w", err)
	}
	if v.Version != vaultVersion {
		return nil, nil, fmt.Errorf("unsupported cookie file version %d", v.Version)
	}

	plain, err := open(e.key(v.Salt), v.Sealed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt cookie file: %w", err)
	}
	if err := json.Unmarshal(plain, &hosts); err != nil {
		return nil, nil, fmt.Errorf("failed to parse cookies: %w", err)
	}
	return hosts, v.Salt, nil
}

func (e *EncryptedFileStore) write(hosts map[string]HostCookies, salt []byte) error {
	if len(salt) == 0 {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(hosts)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	sealed, err := seal(e.key(salt), plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt cookies: %w", err)
	}

	content, err := json.MarshalIndent(vault{
		Version:  vaultVersion,
		Salt:     salt,
		Sealed:   sealed,
		Modified: time.Now(),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace cookie file: %w", err)
	}
	return nil
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key(e.passphrase, salt, kdfIterations, keySize, sha256.New)
}

// loadPassphrase prefers AUDIOGRAB_PASSPHRASE, then a key file in the config dir, creating one on first use
func loadPassphrase() (string, error) {
	if pass := os.Getenv("AUDIOGRAB_PASSPHRASE"); pass != "" {
		return pass, nil
	}

	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	keyFile := filepath.Join(configDir, passphraseFile)

	if content, err := os.ReadFile(keyFile); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := base64.RawURLEncoding.EncodeToString(b)
	if err := os.WriteFile(keyFile, []byte(pass), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seal(key, plain []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func open(key, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	n := gcm.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("ciphertext too short")
	}
	return gcm.Open(nil, sealed[:n], sealed[n:], nil)
}
