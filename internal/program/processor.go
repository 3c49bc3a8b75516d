// Package program implements the record manager: the entry point that
// decodes an instruction and creates or updates the signer's record slot.
//
// # Accounts
//
// Both instructions take three accounts in order:
//
//	[0] signer (create) or payer (update)
//	[1] record slot
//	[2] allocation primitive
//
// # Authorization
//
// Create binds the slot to the signer by re-deriving its address. Update
// only requires a signer and a slot owned by this program; ownership
// implies the slot was created through Create. Options.StrictUpdate adds
// the address check to Update as well.
//
// Every check runs eagerly and the first failure aborts the instruction.
// The host is responsible for discarding partial mutations.
package program

import (
	"io"
	"log/slog"

	"github.com/roach88/introbook/internal/address"
	"github.com/roach88/introbook/internal/failure"
	"github.com/roach88/introbook/internal/instruction"
	"github.com/roach88/introbook/internal/record"
)

// requiredAccounts is the account count both instructions expect.
const requiredAccounts = 3

// Options tunes the processor.
type Options struct {
	// StrictUpdate makes Update verify that the slot is the payer's
	// derived address, matching Create.
	StrictUpdate bool
}

// Processor executes record instructions against host-provided accounts.
type Processor struct {
	host   Host
	logger *slog.Logger
	opts   Options
}

// NewProcessor creates a processor. A nil logger discards program logs.
func NewProcessor(host Host, logger *slog.Logger, opts Options) *Processor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{host: host, logger: logger, opts: opts}
}

// Process decodes data and dispatches it.
func (p *Processor) Process(programID address.PublicKey, accounts []*AccountInfo, data []byte) error {
	p.logger.Debug("processing instruction", "bytes", len(data))

	cmd, err := instruction.Decode(data)
	if err != nil {
		return err
	}

	switch cmd.Op {
	case instruction.OpCreate:
		return p.CreateRecord(programID, accounts, cmd.Name, cmd.Message)
	case instruction.OpUpdate:
		return p.UpdateRecord(programID, accounts, cmd.Name, cmd.Message)
	default:
		return failure.New(failure.UnknownOpcode, "opcode %d", cmd.Op)
	}
}

// CreateRecord allocates the signer's slot and writes the first record.
func (p *Processor) CreateRecord(programID address.PublicKey, accounts []*AccountInfo, name, message string) error {
	p.logger.Info("create record", "name", name, "message", message)

	if err := checkSize(name, message); err != nil {
		return err
	}

	if len(accounts) < requiredAccounts {
		return failure.New(failure.MissingAccounts, "create needs %d accounts, got %d", requiredAccounts, len(accounts))
	}
	signer, slot, allocator := accounts[0], accounts[1], accounts[2]

	p.logger.Info("signer", "key", signer.Key)
	if !signer.IsSigner {
		return failure.New(failure.MissingSignature, "%s did not sign", signer.Key)
	}

	derived, bump, err := address.Derive(signer.Key, programID)
	if err != nil {
		return err
	}
	if derived != slot.Key {
		return failure.New(failure.AddressMismatch, "slot %s, derived %s", slot.Key, derived)
	}

	req := CreateAccountRequest{
		From:      signer,
		To:        slot,
		Allocator: allocator,
		Lamports:  p.host.MinimumBalance(record.Capacity),
		Space:     record.Capacity,
		Owner:     programID,
	}
	seeds := append(address.SlotSeeds(signer.Key), []byte{bump})
	if err := p.host.CreateAccount(req, seeds); err != nil {
		if _, ok := failure.KindOf(err); ok {
			return err
		}
		return failure.Wrap(failure.AllocationFailed, err, "allocate slot")
	}
	p.logger.Info("slot allocated", "slot", slot.Key, "bump", bump, "lamports", req.Lamports)

	current, err := record.Deserialize(slot.Data)
	if err != nil {
		return err
	}
	if current.Initialized {
		return failure.New(failure.AlreadyInitialized, "slot %s already holds a record", slot.Key)
	}

	next := record.Record{Initialized: true, Name: name, Message: message}
	if err := next.Serialize(slot.Data); err != nil {
		return err
	}
	p.logger.Info("record created", "slot", slot.Key)
	return nil
}

// UpdateRecord replaces name and message of an existing record.
func (p *Processor) UpdateRecord(programID address.PublicKey, accounts []*AccountInfo, name, message string) error {
	p.logger.Info("update record", "name", name, "message", message)

	if err := checkSize(name, message); err != nil {
		return err
	}

	if len(accounts) < requiredAccounts {
		return failure.New(failure.MissingAccounts, "update needs %d accounts, got %d", requiredAccounts, len(accounts))
	}
	payer, slot, allocator := accounts[0], accounts[1], accounts[2]
	p.logger.Info("accounts", "payer", payer.Key, "slot", slot.Key, "allocator", allocator.Key)

	if !payer.IsSigner {
		return failure.New(failure.MissingSignature, "%s did not sign", payer.Key)
	}
	if slot.Owner != programID {
		return failure.New(failure.IllegalOwner, "slot %s owned by %s", slot.Key, slot.Owner)
	}
	if p.opts.StrictUpdate {
		derived, _, err := address.Derive(payer.Key, programID)
		if err != nil {
			return err
		}
		if derived != slot.Key {
			return failure.New(failure.AddressMismatch, "slot %s, derived %s", slot.Key, derived)
		}
	}

	current, err := record.Deserialize(slot.Data)
	if err != nil {
		return err
	}
	if !current.Initialized {
		return failure.New(failure.UninitializedRecord, "slot %s holds no record", slot.Key)
	}
	p.logger.Info("previous record", "name", current.Name, "message", current.Message)

	current.Name = name
	current.Message = message
	if err := current.Serialize(slot.Data); err != nil {
		return err
	}
	p.logger.Info("record updated", "slot", slot.Key)
	return nil
}

func checkSize(name, message string) error {
	n := record.SerializedLen(name, message)
	if n > record.Capacity {
		return failure.New(failure.DataTooLarge, "record needs %d bytes, capacity %d", n, record.Capacity)
	}
	return nil
}
