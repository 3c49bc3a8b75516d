// Package address implements public keys and deterministic slot address
// derivation.
//
// A derived address is the SHA-256 of the seeds, the program namespace and
// a fixed marker. Addresses that happen to be valid ed25519 points are
// rejected, so no private key can ever sign for a derived address. The
// bump byte appended as the final seed is searched from 255 downwards and
// the first off-curve result is canonical. Any verifier must use the same
// search order or address checks will diverge.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"github.com/roach88/introbook/internal/failure"
)

// Size is the length of a public key or derived address in bytes.
const Size = 32

const (
	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of one seed.
	MaxSeedLen = 32
)

// derivationMarker is hashed after the program id.
const derivationMarker = "ProgramDerivedAddress"

var (
	// ErrOnCurve is returned when a candidate address is a valid ed25519 point.
	ErrOnCurve = errors.New("address is on the ed25519 curve")

	// ErrInvalidSeeds is returned for too many or too long seeds.
	ErrInvalidSeeds = errors.New("invalid seeds")
)

// PublicKey is a 32-byte identity key or derived address.
type PublicKey [Size]byte

// SystemProgramID identifies the allocation primitive.
var SystemProgramID = PublicKey{}

// String returns the base58 form of k.
func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

// Bytes returns a copy of k as a slice.
func (k PublicKey) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, k[:])
	return b
}

// IsZero reports whether k is all zeros.
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// MarshalText implements encoding.TextMarshaler.
func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("parse public key %q: %w", s, err)
	}
	return PublicKeyFromBytes(b)
}

// PublicKeyFromBytes copies a 32-byte slice into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var k PublicKey
	if len(b) != Size {
		return k, fmt.Errorf("public key must be %d bytes, got %d", Size, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// HashKey derives a fixed key from a label. Used for well-known program ids.
func HashKey(label string) PublicKey {
	return PublicKey(sha256.Sum256([]byte(label)))
}

// IsOnCurve reports whether b is the encoding of an ed25519 point.
func IsOnCurve(b [Size]byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b[:])
	return err == nil
}

// CreateProgramAddress hashes seeds under programID. It fails with
// ErrOnCurve if the result is a curve point.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	if len(seeds) > MaxSeeds {
		return PublicKey{}, fmt.Errorf("%d seeds exceeds %d: %w", len(seeds), MaxSeeds, ErrInvalidSeeds)
	}

	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return PublicKey{}, fmt.Errorf("seed %d is %d bytes: %w", i, len(seed), ErrInvalidSeeds)
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(derivationMarker))

	var addr PublicKey
	copy(addr[:], h.Sum(nil))
	if IsOnCurve(addr) {
		return PublicKey{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps 255 down to 1 and returns the first
// off-curve address with its bump.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return PublicKey{}, 0, failure.Wrap(failure.DerivationExhausted, ErrInvalidSeeds, "no room for bump seed")
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{uint8(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return PublicKey{}, 0, failure.Wrap(failure.DerivationExhausted, err, "derive address")
		}
	}
	return PublicKey{}, 0, failure.New(failure.DerivationExhausted, "no off-curve bump for program %s", programID)
}

// SlotSeeds returns the seeds binding a record slot to identity.
func SlotSeeds(identity PublicKey) [][]byte {
	return [][]byte{identity.Bytes()}
}

// Derive returns the record slot address and bump for identity under the
// program namespace.
func Derive(identity, namespace PublicKey) (PublicKey, uint8, error) {
	return FindProgramAddress(SlotSeeds(identity), namespace)
}
