// Package credential verifies user passwords against locally stored salted
// hashes and keeps an optional reversible copy for unattended re-login.
//
// The salted hash is the only authority on whether a password belongs to a
// user. The encrypted copy exists so the background refresh can log in again
// without asking; it is never consulted by Verify.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
	"gopkg.in/yaml.v3"

	"timetable/internal/atomicfile"
)

const (
	hashIterations = 65536
	keyLength      = 32
	saltLength     = 16

	encryptionInfo = "timetable credential v1"
)

// record is one user's entry in the credential file.
type record struct {
	// Hash is base64(salt) + ":" + base64(pbkdf2(password, salt)).
	Hash string `yaml:"hash,omitempty"`
	// Secret is base64(nonce || AES-GCM ciphertext) of the password.
	Secret string `yaml:"secret,omitempty"`
}

type document struct {
	LastUser string            `yaml:"last_user,omitempty"`
	Users    map[string]record `yaml:"users,omitempty"`
}

// Store is a file-backed credential store keyed by username.
//
// Writes are serialized within the process only; another process writing the
// same file concurrently wins or loses as a whole.
type Store struct {
	path   string
	secret []byte
	mu     sync.Mutex
}

// NewStore returns a Store persisting to path. appSecret keys the reversible
// password copy together with the username.
func NewStore(path, appSecret string) *Store {
	return &Store{path: path, secret: []byte(appSecret)}
}

// Verify reports whether password matches the stored hash for username.
// A missing user, an unreadable file or a malformed record yields false.
func (s *Store) Verify(username, password string) bool {
	s.mu.Lock()
	doc, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return false
	}

	rec, ok := doc.Users[username]
	if !ok || rec.Hash == "" {
		return false
	}

	salt, stored, err := splitHash(rec.Hash)
	if err != nil {
		return false
	}

	candidate := deriveHash(password, salt)
	return subtle.ConstantTimeCompare(stored, candidate) == 1
}

// Save stores a freshly salted hash of password for username, replacing any
// previous hash. The stored string changes on every call.
func (s *Store) Save(username, password string) error {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("credential: generate salt: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(salt) + ":" +
		base64.StdEncoding.EncodeToString(deriveHash(password, salt))

	return s.update(func(doc *document) {
		rec := doc.Users[username]
		rec.Hash = encoded
		doc.Users[username] = rec
	})
}

// SaveEncrypted stores a recoverable copy of password for username.
func (s *Store) SaveEncrypted(username, password string) error {
	sealed, err := s.seal(username, []byte(password))
	if err != nil {
		return fmt.Errorf("credential: encrypt: %w", err)
	}

	return s.update(func(doc *document) {
		rec := doc.Users[username]
		rec.Secret = sealed
		doc.Users[username] = rec
	})
}

// LoadDecrypted returns the recoverable password copy for username. Missing,
// corrupt or undecryptable data all report ok=false.
func (s *Store) LoadDecrypted(username string) (string, bool) {
	s.mu.Lock()
	doc, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return "", false
	}

	rec, ok := doc.Users[username]
	if !ok || rec.Secret == "" {
		return "", false
	}

	plain, err := s.open(username, rec.Secret)
	if err != nil {
		return "", false
	}
	return string(plain), true
}

// LastUser returns the username of the most recent login, if any.
func (s *Store) LastUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return ""
	}
	return doc.LastUser
}

// SetLastUser remembers username as the most recent login.
func (s *Store) SetLastUser(username string) error {
	return s.update(func(doc *document) {
		doc.LastUser = username
	})
}

func (s *Store) update(mutate func(doc *document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	mutate(doc)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(s.path, data, 0o600)
}

func (s *Store) load() (*document, error) {
	doc := &document{}

	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("credential: parse %s: %w", s.path, err)
		}
	}
	if doc.Users == nil {
		doc.Users = make(map[string]record)
	}
	return doc, nil
}

func deriveHash(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, hashIterations, keyLength, sha256.New)
}

func splitHash(v string) (salt, hash []byte, err error) {
	saltPart, hashPart, ok := strings.Cut(v, ":")
	if !ok {
		return nil, nil, errors.New("credential: malformed hash record")
	}
	if salt, err = base64.StdEncoding.DecodeString(saltPart); err != nil {
		return nil, nil, err
	}
	if hash, err = base64.StdEncoding.DecodeString(hashPart); err != nil {
		return nil, nil, err
	}
	return salt, hash, nil
}

// encryptionKey derives the AES-256 key from the application secret and the
// username, so one user's ciphertext cannot be replayed for another.
func (s *Store) encryptionKey(username string) ([]byte, error) {
	if len(s.secret) == 0 {
		return nil, errors.New("credential: application secret is empty")
	}
	key := make([]byte, keyLength)
	r := hkdf.New(sha256.New, s.secret, []byte(username), []byte(encryptionInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *Store) gcm(username string) (cipher.AEAD, error) {
	key, err := s.encryptionKey(username)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *Store) seal(username string, plaintext []byte) (string, error) {
	aead, err := s.gcm(username)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	out := aead.Seal(nonce, nonce, plaintext, []byte(username))
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Store) open(username, sealed string) ([]byte, error) {
	aead, err := s.gcm(username)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize() {
		return nil, errors.New("credential: ciphertext too short")
	}

	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, []byte(username))
}
