package security

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	pubKeyFile  = "server.pub"
	privKeyFile = "server.priv"
)

// GenerateKeyPair creates a new ed25519 key pair.
func GenerateKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// SaveKeyPair writes both keys as hex files.
func SaveKeyPair(pub ed25519.PublicKey, priv ed25519.PrivateKey, pubPath, privPath string) error {
	if err := os.WriteFile(pubPath, []byte(hex.EncodeToString(pub)), 0o600); err != nil {
		return errors.Wrap(err, "write public key")
	}
	if err := os.WriteFile(privPath, []byte(hex.EncodeToString(priv)), 0o600); err != nil {
		return errors.Wrap(err, "write private key")
	}
	return nil
}

// EnsureKeyPair loads the server key pair from dir, generating and saving a
// new one when none exists. The bool reports whether keys were generated.
func EnsureKeyPair(dir string) (ed25519.PublicKey, ed25519.PrivateKey, bool, error) {
	pubPath := filepath.Join(dir, pubKeyFile)
	privPath := filepath.Join(dir, privKeyFile)

	if _, err := os.Stat(pubPath); os.IsNotExist(err) {
		pub, priv, err := GenerateKeyPair()
		if err != nil {
			return nil, nil, false, errors.Wrap(err, "generate key pair")
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, nil, false, errors.Wrap(err, "create keys directory")
		}
		if err := SaveKeyPair(pub, priv, pubPath, privPath); err != nil {
			return nil, nil, false, err
		}
		return pub, priv, true, nil
	}

	pub, err := LoadPublicKey(pubPath)
	if err != nil {
		return nil, nil, false, err
	}
	priv, err := LoadPrivateKey(privPath)
	if err != nil {
		return nil, nil, false, err
	}
	return pub, priv, false, nil
}

// LoadPrivateKey loads a hex-encoded ed25519 private key.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	key, err := readHexKey(path, ed25519.PrivateKeySize)
	if err != nil {
		return nil, errors.Wrap(err, "load private key")
	}
	return ed25519.PrivateKey(key), nil
}

// LoadPublicKey loads a hex-encoded ed25519 public key.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	key, err := readHexKey(path, ed25519.PublicKeySize)
	if err != nil {
		return nil, errors.Wrap(err, "load public key")
	}
	return ed25519.PublicKey(key), nil
}

func readHexKey(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, err
	}
	if len(key) != size {
		return nil, errors.Errorf("invalid key size %d in %s", len(key), path)
	}
	return key, nil
}

// VerifySignature verifies a hex signature of data.
func VerifySignature(pub ed25519.PublicKey, data []byte, sigHex string) (bool, error) {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, data, sig), nil
}

// VerifySignatureFromHex is VerifySignature with a hex-encoded public key.
func VerifySignatureFromHex(pubHex string, data []byte, sigHex string) (bool, error) {
	pubBytes, err := hex.DecodeString(pubHex)
	if err != nil {
		return false, err
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		return false, errors.New("invalid public key size")
	}
	return VerifySignature(ed25519.PublicKey(pubBytes), data, sigHex)
}
