package program

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/introbook/internal/address"
	"github.com/roach88/introbook/internal/failure"
	"github.com/roach88/introbook/internal/instruction"
	"github.com/roach88/introbook/internal/record"
)

var testProgramID = address.HashKey("test/program")

// fakeHost records allocation requests. With reuseSlots set it hands back
// an already-allocated slot unchanged, simulating a replayed allocation.
type fakeHost struct {
	calls      int
	lastSeeds  [][]byte
	lastReq    CreateAccountRequest
	allocErr   error
	reuseSlots bool
}

func (h *fakeHost) MinimumBalance(space uint64) uint64 {
	return (128 + space) * 10
}

func (h *fakeHost) CreateAccount(req CreateAccountRequest, seeds [][]byte) error {
	h.calls++
	h.lastReq = req
	h.lastSeeds = seeds
	if h.allocErr != nil {
		return h.allocErr
	}
	if h.reuseSlots && len(req.To.Data) > 0 {
		return nil
	}
	req.From.Lamports -= req.Lamports
	req.To.Lamports += req.Lamports
	req.To.Data = make([]byte, req.Space)
	req.To.Owner = req.Owner
	return nil
}

func identity(t *testing.T, label string) address.PublicKey {
	t.Helper()
	seed := sha256.Sum256([]byte(label))
	pub := ed25519.NewKeyFromSeed(seed[:]).Public().(ed25519.PublicKey)
	k, err := address.PublicKeyFromBytes(pub)
	require.NoError(t, err)
	return k
}

// accountsFor returns [signer, derived slot, allocator] for label.
func accountsFor(t *testing.T, label string, signed bool) []*AccountInfo {
	t.Helper()
	id := identity(t, label)
	slot, _, err := address.Derive(id, testProgramID)
	require.NoError(t, err)
	return []*AccountInfo{
		{Key: id, IsSigner: signed, IsWritable: true, Lamports: 1_000_000_000},
		{Key: slot, IsWritable: true},
		{Key: address.SystemProgramID},
	}
}

func readSlot(t *testing.T, acct *AccountInfo) record.Record {
	t.Helper()
	r, err := record.Deserialize(acct.Data)
	require.NoError(t, err)
	return r
}

func TestCreateRecord_ScenarioA(t *testing.T) {
	host := &fakeHost{}
	p := NewProcessor(host, nil, Options{})
	accounts := accountsFor(t, "U1", true)

	err := p.Process(testProgramID, accounts, instruction.Encode(instruction.NewCreate("Ann", "Hi")))
	require.NoError(t, err)

	assert.Equal(t, record.Record{Initialized: true, Name: "Ann", Message: "Hi"}, readSlot(t, accounts[1]))
	assert.Len(t, accounts[1].Data, record.Capacity)
	assert.Equal(t, testProgramID, accounts[1].Owner)

	require.Equal(t, 1, host.calls)
	assert.Equal(t, uint64(record.Capacity), host.lastReq.Space)
	assert.Equal(t, host.MinimumBalance(record.Capacity), host.lastReq.Lamports)
	assert.Equal(t, testProgramID, host.lastReq.Owner)

	// Signer seeds reproduce the slot address.
	got, err := address.CreateProgramAddress(host.lastSeeds, testProgramID)
	require.NoError(t, err)
	assert.Equal(t, accounts[1].Key, got)
}

func TestUpdateRecord_ScenarioB(t *testing.T) {
	p := NewProcessor(&fakeHost{}, nil, Options{})
	accounts := accountsFor(t, "U1", true)

	require.NoError(t, p.Process(testProgramID, accounts, instruction.Encode(instruction.NewCreate("Ann", "Hi"))))
	require.NoError(t, p.Process(testProgramID, accounts, instruction.Encode(instruction.NewUpdate("Ann", "Hello again"))))

	assert.Equal(t, record.Record{Initialized: true, Name: "Ann", Message: "Hello again"}, readSlot(t, accounts[1]))
}

func TestCreateRecord_ScenarioC_SizeBoundary(t *testing.T) {
	p := NewProcessor(&fakeHost{}, nil, Options{})

	ok := accountsFor(t, "U1", true)
	require.NoError(t, p.CreateRecord(testProgramID, ok, strings.Repeat("n", 990), ""))
	assert.Equal(t, strings.Repeat("n", 990), readSlot(t, ok[1]).Name)

	host := &fakeHost{}
	p = NewProcessor(host, nil, Options{})
	tooBig := accountsFor(t, "U2", true)
	err := p.CreateRecord(testProgramID, tooBig, strings.Repeat("n", 992), "")
	assert.ErrorIs(t, err, failure.ErrDataTooLarge)
	assert.Nil(t, tooBig[1].Data)
	assert.Equal(t, 0, host.calls)
}

func TestUpdateRecord_DataTooLargeLeavesSlot(t *testing.T) {
	p := NewProcessor(&fakeHost{}, nil, Options{})
	accounts := accountsFor(t, "U1", true)
	require.NoError(t, p.CreateRecord(testProgramID, accounts, "Ann", "Hi"))
	before := append([]byte(nil), accounts[1].Data...)

	err := p.UpdateRecord(testProgramID, accounts, "Ann", strings.Repeat("m", 1000))
	assert.ErrorIs(t, err, failure.ErrDataTooLarge)
	assert.Equal(t, before, accounts[1].Data)
}

func TestCreateRecord_MissingSignature(t *testing.T) {
	host := &fakeHost{}
	p := NewProcessor(host, nil, Options{})
	accounts := accountsFor(t, "U1", false)
	// Even a wrong slot does not matter: the signature check comes first.
	accounts[1].Key = identity(t, "elsewhere")

	err := p.CreateRecord(testProgramID, accounts, "Ann", "Hi")
	assert.ErrorIs(t, err, failure.ErrMissingSignature)
	assert.Equal(t, 0, host.calls)
}

func TestCreateRecord_AddressMismatch(t *testing.T) {
	host := &fakeHost{}
	p := NewProcessor(host, nil, Options{})
	accounts := accountsFor(t, "U1", true)
	other := accountsFor(t, "U2", true)
	accounts[1] = other[1]

	err := p.CreateRecord(testProgramID, accounts, "Ann", "Hi")
	assert.ErrorIs(t, err, failure.ErrAddressMismatch)
	assert.Equal(t, 0, host.calls)
}

func TestCreateRecord_WrongNamespace(t *testing.T) {
	p := NewProcessor(&fakeHost{}, nil, Options{})
	accounts := accountsFor(t, "U1", true)

	err := p.CreateRecord(address.HashKey("other/program"), accounts, "Ann", "Hi")
	assert.ErrorIs(t, err, failure.ErrAddressMismatch)
}

func TestCreateRecord_AlreadyInitialized(t *testing.T) {
	host := &fakeHost{reuseSlots: true}
	p := NewProcessor(host, nil, Options{})
	accounts := accountsFor(t, "U1", true)

	require.NoError(t, p.CreateRecord(testProgramID, accounts, "Ann", "Hi"))

	err := p.CreateRecord(testProgramID, accounts, "Bob", "Replay")
	assert.ErrorIs(t, err, failure.ErrAlreadyInitialized)
	assert.Equal(t, record.Record{Initialized: true, Name: "Ann", Message: "Hi"}, readSlot(t, accounts[1]))
}

func TestCreateRecord_AllocationFailed(t *testing.T) {
	host := &fakeHost{allocErr: errors.New("insufficient funds")}
	p := NewProcessor(host, nil, Options{})
	accounts := accountsFor(t, "U1", true)

	err := p.CreateRecord(testProgramID, accounts, "Ann", "Hi")
	assert.ErrorIs(t, err, failure.ErrAllocationFailed)
	assert.Nil(t, accounts[1].Data)
}

func TestCreateRecord_AllocationFailurePassesThroughKind(t *testing.T) {
	host := &fakeHost{allocErr: failure.New(failure.AllocationFailed, "account in use")}
	p := NewProcessor(host, nil, Options{})

	err := p.CreateRecord(testProgramID, accountsFor(t, "U1", true), "Ann", "Hi")
	fe, ok := failure.As(err)
	require.True(t, ok)
	assert.Equal(t, failure.AllocationFailed, fe.Kind)
	assert.Equal(t, "account in use", fe.Message)
}

func TestUpdateRecord_Uninitialized(t *testing.T) {
	p := NewProcessor(&fakeHost{}, nil, Options{})
	accounts := accountsFor(t, "U1", true)
	accounts[1].Owner = testProgramID
	accounts[1].Data = make([]byte, record.Capacity)

	err := p.UpdateRecord(testProgramID, accounts, "Ann", "Hi")
	assert.ErrorIs(t, err, failure.ErrUninitializedRecord)
}

func TestUpdateRecord_IllegalOwner(t *testing.T) {
	p := NewProcessor(&fakeHost{}, nil, Options{})
	accounts := accountsFor(t, "U1", true)
	accounts[1].Data = make([]byte, record.Capacity)

	err := p.UpdateRecord(testProgramID, accounts, "Ann", "Hi")
	assert.ErrorIs(t, err, failure.ErrIllegalOwner)
}

func TestUpdateRecord_MissingSignature(t *testing.T) {
	p := NewProcessor(&fakeHost{}, nil, Options{})
	accounts := accountsFor(t, "U1", true)
	require.NoError(t, p.CreateRecord(testProgramID, accounts, "Ann", "Hi"))
	accounts[0].IsSigner = false

	err := p.UpdateRecord(testProgramID, accounts, "Ann", "Bye")
	assert.ErrorIs(t, err, failure.ErrMissingSignature)
}

func TestUpdateRecord_ForeignPayerAllowedByDefault(t *testing.T) {
	p := NewProcessor(&fakeHost{}, nil, Options{})
	owner := accountsFor(t, "U1", true)
	require.NoError(t, p.CreateRecord(testProgramID, owner, "Ann", "Hi"))

	intruder := accountsFor(t, "U2", true)
	intruder[1] = owner[1]

	require.NoError(t, p.UpdateRecord(testProgramID, intruder, "Eve", "mine now"))
	assert.Equal(t, "Eve", readSlot(t, owner[1]).Name)
}

func TestUpdateRecord_StrictRejectsForeignPayer(t *testing.T) {
	p := NewProcessor(&fakeHost{}, nil, Options{StrictUpdate: true})
	owner := accountsFor(t, "U1", true)
	require.NoError(t, p.CreateRecord(testProgramID, owner, "Ann", "Hi"))

	intruder := accountsFor(t, "U2", true)
	intruder[1] = owner[1]

	err := p.UpdateRecord(testProgramID, intruder, "Eve", "mine now")
	assert.ErrorIs(t, err, failure.ErrAddressMismatch)
	assert.Equal(t, "Ann", readSlot(t, owner[1]).Name)

	require.NoError(t, p.UpdateRecord(testProgramID, owner, "Ann", "still mine"))
}

func TestUpdateRecord_MalformedSlot(t *testing.T) {
	p := NewProcessor(&fakeHost{}, nil, Options{})
	accounts := accountsFor(t, "U1", true)
	accounts[1].Owner = testProgramID
	accounts[1].Data = []byte{1, 200, 0, 0, 0, 0, 0, 0, 0}

	err := p.UpdateRecord(testProgramID, accounts, "Ann", "Hi")
	assert.ErrorIs(t, err, failure.ErrMalformedRecord)
}

func TestProcess_DecoderErrors(t *testing.T) {
	p := NewProcessor(&fakeHost{}, nil, Options{})
	accounts := accountsFor(t, "U1", true)

	err := p.Process(testProgramID, accounts, nil)
	assert.ErrorIs(t, err, failure.ErrEmptyInstruction)

	err = p.Process(testProgramID, accounts, []byte{2, 0, 0, 0, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, failure.ErrUnknownOpcode)

	err = p.Process(testProgramID, accounts, []byte{0, 9})
	assert.ErrorIs(t, err, failure.ErrMalformedPayload)
}

func TestProcess_MissingAccounts(t *testing.T) {
	p := NewProcessor(&fakeHost{}, nil, Options{})
	accounts := accountsFor(t, "U1", true)[:2]

	err := p.Process(testProgramID, accounts, instruction.Encode(instruction.NewCreate("Ann", "Hi")))
	assert.ErrorIs(t, err, failure.ErrMissingAccounts)

	err = p.Process(testProgramID, accounts, instruction.Encode(instruction.NewUpdate("Ann", "Hi")))
	assert.ErrorIs(t, err, failure.ErrMissingAccounts)
}
