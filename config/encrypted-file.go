package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/siphon-data/siphon/constants"
)

// defaultFileKey protects local credential documents at rest. Users should
// supply their own key via SIPHON_FILE_KEY; the default only guards against
// casual reads of the file.
var defaultFileKey = []byte("k2W%yM9#siphon!fQz7@LpVd4$RcnT8u")

// EncryptedFile stores a document AES-GCM encrypted and base64 encoded.
type EncryptedFile struct {
	Dirname  string
	FileName string
	FullPath string
	key      []byte
}

// NewEncryptedFileInHomeDir creates an encrypted file handle under the siphon
// home directory.
func NewEncryptedFileInHomeDir(filename string) *EncryptedFile {
	return NewEncryptedFile(MustGetHomeDir(), filename)
}

// NewEncryptedFile creates an encrypted file handle in the given directory.
func NewEncryptedFile(dirName string, filename string) *EncryptedFile {
	f := &EncryptedFile{Dirname: dirName, FileName: filename}
	f.FullPath = path.Join(dirName, filename)
	f.key = fileKey()
	return f
}

func fileKey() []byte {
	if env := os.Getenv(constants.EnvVarPrefix + "_FILE_KEY"); env != "" {
		// Stretch whatever the user supplied to a 32 byte AES-256 key.
		sum := sha256.Sum256([]byte(env))
		return sum[:]
	}
	return defaultFileKey
}

// Set encrypts and writes the document, creating the directory if needed.
func (f *EncryptedFile) Set(text []byte) error {
	c, err := aes.NewCipher(f.key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(c)
	if err != nil {
		return err
	}
	// The nonce must be unique per encryption under the same key.
	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	sealed := gcm.Seal(nonce, nonce, text, nil)
	b64 := base64.StdEncoding.EncodeToString(sealed)
	if !fileExists(f.FullPath) {
		if err := makeDir(f.Dirname); err != nil {
			return err
		}
	}
	return os.WriteFile(f.FullPath, []byte(b64), 0600)
}

// Get reads and decrypts the document. A missing file returns FileNotFoundError.
func (f *EncryptedFile) Get() ([]byte, error) {
	if !fileExists(f.FullPath) {
		return nil, FileNotFoundError{f.FullPath}
	}
	b64, err := os.ReadFile(f.FullPath)
	if err != nil {
		return nil, err
	}
	cipherText, err := base64.StdEncoding.DecodeString(string(b64))
	if err != nil {
		return nil, err
	}
	return decrypt(cipherText, f.key)
}

func decrypt(text []byte, key []byte) ([]byte, error) {
	c, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(c)
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(text) < nonceSize {
		return nil, fmt.Errorf("encrypted text is too short")
	}
	nonce, cipherText := text[:nonceSize], text[nonceSize:]
	return gcm.Open(nil, nonce, cipherText, nil)
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
