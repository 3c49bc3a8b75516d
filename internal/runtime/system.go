package runtime

import (
	"github.com/roach88/introbook/internal/address"
	"github.com/roach88/introbook/internal/failure"
	"github.com/roach88/introbook/internal/program"
)

// MaxAccountSpace bounds the data size of a single account.
const MaxAccountSpace = 10 * 1024 * 1024

// systemHost is the allocation primitive and rent oracle handed to the
// program for one invocation. caller is the program whose signer seeds
// are honoured.
type systemHost struct {
	rent   Rent
	caller address.PublicKey
}

var _ program.Host = (*systemHost)(nil)

func (h *systemHost) MinimumBalance(space uint64) uint64 {
	return h.rent.MinimumBalance(space)
}

// CreateAccount funds and allocates req.To. The new account must either
// have signed the transaction or be the caller's derived address for
// signerSeeds.
func (h *systemHost) CreateAccount(req program.CreateAccountRequest, signerSeeds [][]byte) error {
	if req.Allocator == nil || req.Allocator.Key != address.SystemProgramID {
		return failure.New(failure.AllocationFailed, "allocator is not the system program")
	}
	if req.From == nil || req.To == nil {
		return failure.New(failure.AllocationFailed, "missing funding or new account")
	}
	if !req.From.IsSigner {
		return failure.New(failure.AllocationFailed, "funding account %s did not sign", req.From.Key)
	}
	if !req.From.IsWritable || !req.To.IsWritable {
		return failure.New(failure.AllocationFailed, "funding and new accounts must be writable")
	}

	if !req.To.IsSigner {
		if len(signerSeeds) == 0 {
			return failure.New(failure.AllocationFailed, "new account %s did not sign", req.To.Key)
		}
		derived, err := address.CreateProgramAddress(signerSeeds, h.caller)
		if err != nil {
			return failure.Wrap(failure.AllocationFailed, err, "signer seeds")
		}
		if derived != req.To.Key {
			return failure.New(failure.AllocationFailed, "signer seeds derive %s, not %s", derived, req.To.Key)
		}
	}

	if req.To.Lamports > 0 || len(req.To.Data) > 0 || req.To.Owner != address.SystemProgramID {
		return failure.New(failure.AllocationFailed, "account %s already in use", req.To.Key)
	}
	if req.Space > MaxAccountSpace {
		return failure.New(failure.AllocationFailed, "space %d exceeds %d", req.Space, MaxAccountSpace)
	}
	if req.From.Lamports < req.Lamports {
		return failure.New(failure.AllocationFailed, "insufficient funds: %s has %d lamports, needs %d",
			req.From.Key, req.From.Lamports, req.Lamports)
	}

	req.From.Lamports -= req.Lamports
	req.To.Lamports += req.Lamports
	req.To.Data = make([]byte, req.Space)
	req.To.Owner = req.Owner
	return nil
}
