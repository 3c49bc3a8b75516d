package runtime

import (
	"math"
	"math/bits"
)

// AccountStorageOverhead is the per-account byte overhead charged in
// addition to the account's data.
const AccountStorageOverhead = 128

// Rent prices account storage. An account holding at least
// MinimumBalance(len(data)) lamports is exempt from recurring rent.
type Rent struct {
	LamportsPerByteYear uint64 `json:"lamports_per_byte_year"`
	ExemptionThreshold  uint64 `json:"exemption_threshold"`
}

// DefaultRent matches the parameters most ledgers ship with.
var DefaultRent = Rent{
	LamportsPerByteYear: 3480,
	ExemptionThreshold:  2,
}

// MinimumBalance returns the rent-exempt balance for space bytes of data.
// The result saturates at math.MaxUint64, which no account can hold.
func (r Rent) MinimumBalance(space uint64) uint64 {
	bytes, carry := bits.Add64(AccountStorageOverhead, space, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	hi, perYear := bits.Mul64(bytes, r.LamportsPerByteYear)
	if hi != 0 {
		return math.MaxUint64
	}
	hi, total := bits.Mul64(perYear, r.ExemptionThreshold)
	if hi != 0 {
		return math.MaxUint64
	}
	return total
}
