package crypto

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/mcb/mcp-context-browser/domain/errs"
)

// Keystore manages hex-encoded AES keys under <root>/encryption/<id>.key.
// Key files are created with owner-only permissions.
type Keystore struct {
	dir string
}

// NewKeystore creates a keystore rooted at dataDir.
func NewKeystore(dataDir string) (*Keystore, error) {
	if dataDir == "" {
		return nil, errs.New(errs.KindConfig, "keystore requires a data directory")
	}
	dir := filepath.Join(dataDir, "encryption")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errs.Wrapf(errs.KindIo, err, "creating keystore directory %s", dir)
	}
	return &Keystore{dir: dir}, nil
}

func (k *Keystore) keyPath(id string) string {
	return filepath.Join(k.dir, id+".key")
}

// Load reads the key with the given id.
func (k *Keystore) Load(id string) ([]byte, error) {
	data, err := os.ReadFile(k.keyPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.Newf(errs.KindCrypto, "key %q not found", id)
		}
		return nil, errs.Wrapf(errs.KindIo, err, "reading key %q", id)
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, errs.Wrapf(errs.KindCrypto, err, "decoding key %q", id)
	}
	if len(key) != KeySize {
		return nil, errs.Newf(errs.KindCrypto, "key %q has %d bytes, expected %d", id, len(key), KeySize)
	}
	return key, nil
}

// LoadOrCreate returns the key with the given id, generating and persisting
// a fresh one when absent.
func (k *Keystore) LoadOrCreate(id string) ([]byte, error) {
	if _, err := os.Stat(k.keyPath(id)); err == nil {
		return k.Load(id)
	} else if !os.IsNotExist(err) {
		return nil, errs.Wrapf(errs.KindIo, err, "checking key %q", id)
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	encoded := hex.EncodeToString(key) + "\n"
	if err := os.WriteFile(k.keyPath(id), []byte(encoded), 0o600); err != nil {
		return nil, errs.Wrapf(errs.KindIo, err, "writing key %q", id)
	}
	return key, nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (k *Keystore) Delete(id string) error {
	err := os.Remove(k.keyPath(id))
	if err != nil && !os.IsNotExist(err) {
		return errs.Wrapf(errs.KindIo, err, "deleting key %q", id)
	}
	return nil
}
