// Package security provides credential encryption, audit logging, and
// input validation for the predictor.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// EncryptionKeySize is the size of the AES-256 key in bytes.
	EncryptionKeySize = 32
	// SaltSize is the size of the salt for key derivation.
	SaltSize = 16
	// NonceSize is the size of the GCM nonce.
	NonceSize = 12
	// PBKDF2Iterations is the number of iterations for key derivation.
	PBKDF2Iterations = 100000
)

// CredentialManager handles encrypted storage of API credentials.
type CredentialManager struct {
	configDir    string
	masterKey    []byte
	credentials  *EncryptedCredentials
	mu           sync.RWMutex
	sessionStart time.Time
	timeout      time.Duration
}

// EncryptedCredentials is the on-disk envelope.
type EncryptedCredentials struct {
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	Version    int    `json:"version"`
}

// PlainCredentials holds decrypted credential data.
type PlainCredentials struct {
	Kite  KiteCredentials  `json:"kite"`
	Redis RedisCredentials `json:"redis"`
}

// KiteCredentials holds Kite Connect API credentials.
type KiteCredentials struct {
	APIKey      string `json:"api_key"`
	APISecret   string `json:"api_secret"`
	AccessToken string `json:"access_token,omitempty"`
}

// RedisCredentials holds the Redis password when auth is required.
type RedisCredentials struct {
	Password string `json:"password,omitempty"`
}

// NewCredentialManager creates a credential manager rooted at configDir.
func NewCredentialManager(configDir string, sessionTimeout time.Duration) *CredentialManager {
	if sessionTimeout == 0 {
		sessionTimeout = 8 * time.Hour
	}
	return &CredentialManager{
		configDir:    configDir,
		timeout:      sessionTimeout,
		sessionStart: time.Now(),
	}
}

// HasEncryptedCredentials reports whether an encrypted credential file
// exists for this manager's config directory.
func (cm *CredentialManager) HasEncryptedCredentials() bool {
	_, err := os.Stat(filepath.Join(cm.configDir, "credentials.enc"))
	return err == nil
}

// Initialize unlocks the manager with the master password. A plain-text
// credentials.toml left behind by `config init` is migrated into the
// encrypted file and then securely deleted.
func (cm *CredentialManager) Initialize(masterPassword string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	encryptedPath := filepath.Join(cm.configDir, "credentials.enc")

	if _, err := os.Stat(encryptedPath); os.IsNotExist(err) {
		plainPath := filepath.Join(cm.configDir, "credentials.toml")
		if _, err := os.Stat(plainPath); err == nil {
			return cm.migrateFromPlainText(masterPassword, plainPath, encryptedPath)
		}
		return cm.createEmptyCredentials(masterPassword, encryptedPath)
	}

	return cm.loadEncryptedCredentials(masterPassword, encryptedPath)
}

// deriveKey derives an encryption key from a password using PBKDF2.
func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, PBKDF2Iterations, EncryptionKeySize, sha256.New)
}

// encrypt encrypts plaintext using AES-256-GCM.
func encrypt(plaintext, key []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("creating GCM: %w", err)
	}

	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return nonce, ciphertext, nil
}

// decrypt decrypts ciphertext using AES-256-GCM.
func decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}

	return plaintext, nil
}

// migrateFromPlainText moves plain-text credentials into the encrypted file.
func (cm *CredentialManager) migrateFromPlainText(masterPassword, plainPath, encryptedPath string) error {
	data, err := os.ReadFile(plainPath)
	if err != nil {
		return fmt.Errorf("reading plain credentials: %w", err)
	}

	creds := &PlainCredentials{}
	if err := parseTOMLCredentials(string(data), creds); err != nil {
		return fmt.Errorf("parsing credentials: %w", err)
	}

	if err := cm.saveCredentials(masterPassword, creds, encryptedPath); err != nil {
		return fmt.Errorf("saving encrypted credentials: %w", err)
	}

	if err := secureDelete(plainPath); err != nil {
		fmt.Printf("Warning: could not securely delete plain credential file: %v\n", err)
	}

	return nil
}

// parseTOMLCredentials reads the [kite] and [redis] sections of the
// credentials template. Two sections of flat string keys do not warrant a
// TOML parser dependency here.
func parseTOMLCredentials(content string, creds *PlainCredentials) error {
	currentSection := ""

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.Trim(line, "[]")
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), "\"")

		switch currentSection {
		case "kite":
			switch key {
			case "api_key":
				creds.Kite.APIKey = value
			case "api_secret":
				creds.Kite.APISecret = value
			case "access_token":
				creds.Kite.AccessToken = value
			}
		case "redis":
			if key == "password" {
				creds.Redis.Password = value
			}
		}
	}

	return nil
}

// saveCredentials encrypts and writes credentials with a fresh salt.
func (cm *CredentialManager) saveCredentials(masterPassword string, creds *PlainCredentials, path string) error {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}

	key := deriveKey(masterPassword, salt)
	cm.masterKey = key

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("serializing credentials: %w", err)
	}

	nonce, ciphertext, err := encrypt(plaintext, key)
	if err != nil {
		return fmt.Errorf("encrypting credentials: %w", err)
	}

	encCreds := &EncryptedCredentials{
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		Version:    1,
	}

	data, err := json.MarshalIndent(encCreds, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing encrypted credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing encrypted credentials: %w", err)
	}

	cm.credentials = encCreds
	cm.sessionStart = time.Now()
	return nil
}

// loadEncryptedCredentials loads and verifies credentials.
func (cm *CredentialManager) loadEncryptedCredentials(masterPassword, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading encrypted credentials: %w", err)
	}

	encCreds := &EncryptedCredentials{}
	if err := json.Unmarshal(data, encCreds); err != nil {
		return fmt.Errorf("parsing encrypted credentials: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(encCreds.Salt)
	if err != nil {
		return fmt.Errorf("decoding salt: %w", err)
	}

	cm.masterKey = deriveKey(masterPassword, salt)
	cm.credentials = encCreds
	cm.sessionStart = time.Now()

	// Verify by attempting to decrypt.
	if _, err := cm.getLocked(); err != nil {
		cm.masterKey = nil
		return fmt.Errorf("invalid master password")
	}

	return nil
}

// createEmptyCredentials writes an empty encrypted credentials file.
func (cm *CredentialManager) createEmptyCredentials(masterPassword, path string) error {
	return cm.saveCredentials(masterPassword, &PlainCredentials{}, path)
}

// GetCredentials returns decrypted credentials while the session is valid.
func (cm *CredentialManager) GetCredentials() (*PlainCredentials, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.getLocked()
}

func (cm *CredentialManager) getLocked() (*PlainCredentials, error) {
	if cm.masterKey == nil || cm.credentials == nil {
		return nil, fmt.Errorf("credential manager not initialized")
	}
	if time.Since(cm.sessionStart) > cm.timeout {
		return nil, fmt.Errorf("session expired, please re-authenticate")
	}

	nonce, err := base64.StdEncoding.DecodeString(cm.credentials.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decoding nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(cm.credentials.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decoding ciphertext: %w", err)
	}

	plaintext, err := decrypt(ciphertext, cm.masterKey, nonce)
	if err != nil {
		return nil, fmt.Errorf("decrypting credentials: %w", err)
	}

	creds := &PlainCredentials{}
	if err := json.Unmarshal(plaintext, creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return creds, nil
}

// UpdateCredentials re-encrypts the given credentials under the current key.
func (cm *CredentialManager) UpdateCredentials(creds *PlainCredentials) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.masterKey == nil || cm.credentials == nil {
		return fmt.Errorf("credential manager not initialized")
	}
	if time.Since(cm.sessionStart) > cm.timeout {
		return fmt.Errorf("session expired, please re-authenticate")
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("serializing credentials: %w", err)
	}

	nonce, ciphertext, err := encrypt(plaintext, cm.masterKey)
	if err != nil {
		return fmt.Errorf("encrypting credentials: %w", err)
	}

	cm.credentials.Nonce = base64.StdEncoding.EncodeToString(nonce)
	cm.credentials.Ciphertext = base64.StdEncoding.EncodeToString(ciphertext)

	path := filepath.Join(cm.configDir, "credentials.enc")
	data, err := json.MarshalIndent(cm.credentials, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing encrypted credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing encrypted credentials: %w", err)
	}

	return nil
}

// IsSessionValid reports whether the manager is unlocked and fresh.
func (cm *CredentialManager) IsSessionValid() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.masterKey != nil && time.Since(cm.sessionStart) <= cm.timeout
}

// RefreshSession restarts the session timeout.
func (cm *CredentialManager) RefreshSession() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.sessionStart = time.Now()
}

// ClearSession wipes the master key from memory.
func (cm *CredentialManager) ClearSession() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.masterKey != nil {
		for i := range cm.masterKey {
			cm.masterKey[i] = 0
		}
		cm.masterKey = nil
	}
	cm.credentials = nil
}

// secureDelete overwrites a file with random data before deleting it.
func secureDelete(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}

	randomData := make([]byte, info.Size())
	if _, err := rand.Read(randomData); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(randomData); err != nil {
		f.Close()
		return err
	}
	f.Close()

	return os.Remove(path)
}
