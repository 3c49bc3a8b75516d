package program

import (
	"github.com/roach88/introbook/internal/address"
)

// AccountInfo is the host's view of one account passed to the program.
// The program mutates Data in place; the host decides whether the
// mutation is committed.
type AccountInfo struct {
	Key        address.PublicKey
	IsSigner   bool
	IsWritable bool
	Lamports   uint64
	Owner      address.PublicKey
	Data       []byte
}

// CreateAccountRequest asks the allocation primitive for a new slot.
type CreateAccountRequest struct {
	// From funds the new account and must be a signer.
	From *AccountInfo

	// To is the account being created.
	To *AccountInfo

	// Allocator is the allocation primitive's own account.
	Allocator *AccountInfo

	Lamports uint64
	Space    uint64
	Owner    address.PublicKey
}

// Host is the execution environment the program runs inside.
type Host interface {
	// MinimumBalance returns the lamports needed to keep space bytes
	// allocated without paying recurring rent.
	MinimumBalance(space uint64) uint64

	// CreateAccount allocates req.To. signerSeeds, if non-empty, prove that
	// the calling program owns the derived address being allocated.
	CreateAccount(req CreateAccountRequest, signerSeeds [][]byte) error
}
