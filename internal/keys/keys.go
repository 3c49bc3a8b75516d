// Package keys manages ed25519 identity keypairs and their on-disk form.
//
// A keypair file is a JSON array of the 64 private key bytes (seed
// followed by public key), the format most ledger wallets read.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/roach88/introbook/internal/address"
)

// ErrInvalidKeypair is returned for keypair bytes that are not a
// consistent ed25519 private key.
var ErrInvalidKeypair = errors.New("invalid keypair")

// Keypair is an identity's signing key.
type Keypair struct {
	priv ed25519.PrivateKey
}

// Generate creates a keypair from rand. A nil rand uses crypto/rand.
func Generate(r io.Reader) (Keypair, error) {
	if r == nil {
		r = rand.Reader
	}
	_, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return Keypair{priv: priv}, nil
}

// FromSeed derives the keypair for a 32-byte seed.
func FromSeed(seed []byte) (Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return Keypair{}, fmt.Errorf("%w: seed is %d bytes, want %d", ErrInvalidKeypair, len(seed), ed25519.SeedSize)
	}
	return Keypair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// FromPrivateKey wraps an existing private key.
func FromPrivateKey(priv ed25519.PrivateKey) (Keypair, error) {
	return fromBytes(priv)
}

func fromBytes(b []byte) (Keypair, error) {
	if len(b) != ed25519.PrivateKeySize {
		return Keypair{}, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidKeypair, len(b), ed25519.PrivateKeySize)
	}
	priv := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !bytes.Equal(priv[ed25519.SeedSize:], b[ed25519.SeedSize:]) {
		return Keypair{}, fmt.Errorf("%w: public key does not match seed", ErrInvalidKeypair)
	}
	return Keypair{priv: priv}, nil
}

// PrivateKey returns the signing key.
func (k Keypair) PrivateKey() ed25519.PrivateKey {
	return k.priv
}

// Public returns the identity's public key.
func (k Keypair) Public() address.PublicKey {
	var pub address.PublicKey
	copy(pub[:], k.priv[ed25519.SeedSize:])
	return pub
}

// MarshalJSON encodes the keypair as an array of byte values.
func (k Keypair) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(k.priv))
	for i, b := range k.priv {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

// UnmarshalJSON decodes an array of byte values.
func (k *Keypair) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	raw := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("%w: byte %d out of range: %d", ErrInvalidKeypair, i, v)
		}
		raw[i] = byte(v)
	}
	kp, err := fromBytes(raw)
	if err != nil {
		return err
	}
	*k = kp
	return nil
}

// Save writes the keypair to path with owner-only permissions. Existing
// files are not overwritten unless force is set.
func Save(path string, k Keypair, force bool) error {
	data, err := json.Marshal(k)
	if err != nil {
		return fmt.Errorf("save keypair: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("save keypair: %w", err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return fmt.Errorf("save keypair: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("save keypair: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("save keypair: %w", err)
	}
	return nil
}

// Load reads a keypair file.
func Load(path string) (Keypair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Keypair{}, fmt.Errorf("load keypair: %w", err)
	}
	var k Keypair
	if err := json.Unmarshal(data, &k); err != nil {
		return Keypair{}, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return k, nil
}
