package runtime

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/roach88/introbook/internal/address"
	"github.com/roach88/introbook/internal/instruction"
)

var (
	// ErrSignatureVerification is returned when an account flagged as signer
	// has no valid signature.
	ErrSignatureVerification = errors.New("signature verification failed")

	// ErrTooManyAccounts is returned for instructions whose account count
	// does not fit the one-byte message header.
	ErrTooManyAccounts = errors.New("too many accounts")
)

// MaxAccounts is the largest account list a message can encode.
const MaxAccounts = 255

// AccountMeta describes one account an instruction touches.
type AccountMeta struct {
	PublicKey  address.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a program invocation: target program, ordered accounts
// and opaque instruction data.
type Instruction struct {
	ProgramID address.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// Signature is an ed25519 signature over a transaction message.
type Signature struct {
	PublicKey address.PublicKey
	Bytes     []byte
}

// Transaction is a signed instruction.
type Transaction struct {
	Instruction Instruction
	Signatures  []Signature
}

const (
	flagSigner   = 1 << 0
	flagWritable = 1 << 1
)

// Message returns the bytes signers sign:
//
//	programID || u8 count || (key || flags)* || u32 LE len || data
func (ix Instruction) Message() []byte {
	buf := make([]byte, 0, address.Size+1+len(ix.Accounts)*(address.Size+1)+4+len(ix.Data))
	buf = append(buf, ix.ProgramID[:]...)
	buf = append(buf, byte(len(ix.Accounts)))
	for _, meta := range ix.Accounts {
		var flags byte
		if meta.IsSigner {
			flags |= flagSigner
		}
		if meta.IsWritable {
			flags |= flagWritable
		}
		buf = append(buf, meta.PublicKey[:]...)
		buf = append(buf, flags)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ix.Data)))
	return append(buf, ix.Data...)
}

// NewTransaction signs ix with every given key.
func NewTransaction(ix Instruction, signers ...ed25519.PrivateKey) (Transaction, error) {
	if len(ix.Accounts) > MaxAccounts {
		return Transaction{}, fmt.Errorf("new transaction: %d accounts: %w", len(ix.Accounts), ErrTooManyAccounts)
	}
	tx := Transaction{Instruction: ix}
	msg := ix.Message()
	for _, priv := range signers {
		pub, err := address.PublicKeyFromBytes(priv.Public().(ed25519.PublicKey))
		if err != nil {
			return Transaction{}, fmt.Errorf("new transaction: %w", err)
		}
		tx.Signatures = append(tx.Signatures, Signature{
			PublicKey: pub,
			Bytes:     ed25519.Sign(priv, msg),
		})
	}
	return tx, nil
}

// VerifiedSigners returns the keys whose signatures verify. It fails if an
// account flagged as signer lacks a valid signature or the account list is
// too long to encode.
func (tx Transaction) VerifiedSigners() (map[address.PublicKey]bool, error) {
	if n := len(tx.Instruction.Accounts); n > MaxAccounts {
		return nil, fmt.Errorf("%d accounts: %w", n, ErrTooManyAccounts)
	}
	msg := tx.Instruction.Message()
	verified := make(map[address.PublicKey]bool, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		if ed25519.Verify(ed25519.PublicKey(sig.PublicKey[:]), msg, sig.Bytes) {
			verified[sig.PublicKey] = true
		}
	}

	for _, meta := range tx.Instruction.Accounts {
		if meta.IsSigner && !verified[meta.PublicKey] {
			return nil, fmt.Errorf("account %s: %w", meta.PublicKey, ErrSignatureVerification)
		}
	}
	return verified, nil
}

// SlotInstruction builds a record instruction for identity. The slot is
// the identity's derived address unless slot is non-nil. signed controls
// whether identity is flagged as signer.
func SlotInstruction(programID, identity address.PublicKey, slot *address.PublicKey, signed bool, cmd instruction.Command) (Instruction, error) {
	target := address.PublicKey{}
	if slot != nil {
		target = *slot
	} else {
		derived, _, err := address.Derive(identity, programID)
		if err != nil {
			return Instruction{}, fmt.Errorf("slot instruction: %w", err)
		}
		target = derived
	}

	return RawInstruction(programID, identity, target, signed, instruction.Encode(cmd)), nil
}

// RawInstruction builds an instruction with the standard account list
// [identity, slot, system program] and arbitrary data.
func RawInstruction(programID, identity, slot address.PublicKey, signed bool, data []byte) Instruction {
	return Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{PublicKey: identity, IsSigner: signed, IsWritable: true},
			{PublicKey: slot, IsWritable: true},
			{PublicKey: address.SystemProgramID},
		},
		Data: data,
	}
}
