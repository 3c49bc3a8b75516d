// Package runtime is the host environment for the record program.
//
// A Runtime accepts signed transactions, verifies signatures, loads the
// referenced accounts from the ledger, runs the program and commits the
// resulting account state. Each transaction is all-or-nothing: any
// program failure rolls back every account write. Every submission,
// successful or not, is appended to the ledger's transaction log together
// with the program's log lines.
//
// Submissions are serialized by the ledger's single writer connection.
package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/introbook/internal/address"
	"github.com/roach88/introbook/internal/failure"
	"github.com/roach88/introbook/internal/ledger"
	"github.com/roach88/introbook/internal/program"
)

var (
	// ErrUnknownProgram is returned for instructions addressed to another program.
	ErrUnknownProgram = errors.New("unknown program")

	// ErrReadonlyModified is returned when the program changes an account
	// that was not passed as writable.
	ErrReadonlyModified = errors.New("read-only account modified")
)

// Options configures a Runtime.
type Options struct {
	// ProgramID is the namespace the record program runs under.
	ProgramID address.PublicKey

	// Rent prices slot allocation. Nil uses DefaultRent; a zero Rent makes
	// allocation free.
	Rent *Rent

	// Program tunes the record program.
	Program program.Options

	// IDs generates transaction ids. Nil uses UUIDv7Generator.
	IDs IDGenerator

	// Logger receives runtime logs. Nil discards them.
	Logger *slog.Logger
}

// Runtime executes record program transactions against a ledger.
type Runtime struct {
	store     *ledger.Store
	programID address.PublicKey
	rent      Rent
	progOpts  program.Options
	ids       IDGenerator
	logger    *slog.Logger
}

// Receipt describes the outcome of one submitted transaction.
type Receipt struct {
	ID     string
	Seq    int64
	Status string
	Err    error
	Logs   []string
}

// New creates a runtime over store.
func New(store *ledger.Store, opts Options) *Runtime {
	r := &Runtime{
		store:     store,
		programID: opts.ProgramID,
		rent:      DefaultRent,
		progOpts:  opts.Program,
		ids:       opts.IDs,
		logger:    opts.Logger,
	}
	if opts.Rent != nil {
		r.rent = *opts.Rent
	}
	if r.ids == nil {
		r.ids = UUIDv7Generator{}
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// ProgramID returns the namespace the runtime executes.
func (r *Runtime) ProgramID() address.PublicKey {
	return r.programID
}

// Rent returns the rent parameters in force.
func (r *Runtime) Rent() Rent {
	return r.rent
}

// Store returns the underlying ledger.
func (r *Runtime) Store() *ledger.Store {
	return r.store
}

// Submit executes tx. The receipt is returned whenever the transaction was
// logged; err is the program or runtime failure, if any.
func (r *Runtime) Submit(ctx context.Context, tx Transaction) (Receipt, error) {
	receipt := Receipt{ID: r.ids.Generate(), Logs: []string{}}
	ix := tx.Instruction

	signers, err := tx.VerifiedSigners()
	if err != nil {
		return r.reject(ctx, receipt, ix, nil, err)
	}
	if ix.ProgramID != r.programID {
		return r.reject(ctx, receipt, ix, signers, fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID))
	}

	ltx, err := r.store.Begin(ctx)
	if err != nil {
		return receipt, fmt.Errorf("submit: %w", err)
	}
	defer ltx.Rollback()

	seq, err := ltx.NextSeq(ctx)
	if err != nil {
		return receipt, fmt.Errorf("submit: %w", err)
	}

	loaded, err := r.loadAccounts(ctx, ltx, ix.Accounts, signers)
	if err != nil {
		return receipt, fmt.Errorf("submit: %w", err)
	}

	var logBuf bytes.Buffer
	proc := program.NewProcessor(
		&systemHost{rent: r.rent, caller: r.programID},
		newProgramLogger(&logBuf),
		r.progOpts,
	)
	procErr := proc.Process(r.programID, loaded.infos, ix.Data)
	receipt.Logs = splitLogs(logBuf.String())

	if procErr == nil {
		procErr = loaded.checkReadonly()
	}
	if procErr != nil {
		if rbErr := ltx.Rollback(); rbErr != nil {
			return receipt, fmt.Errorf("submit: rollback: %w", rbErr)
		}
		return r.reject(ctx, receipt, ix, signers, procErr)
	}

	for _, info := range loaded.writable() {
		err := ltx.PutAccount(ctx, ledger.Account{
			Address:    info.Key,
			Owner:      info.Owner,
			Lamports:   info.Lamports,
			Data:       info.Data,
			UpdatedSeq: seq,
		})
		if err != nil {
			return receipt, fmt.Errorf("submit: %w", err)
		}
	}

	rec := r.transactionRecord(receipt, ix, signers, ledger.StatusOK, nil)
	if receipt.Seq, err = ltx.WriteTransaction(ctx, rec); err != nil {
		return receipt, fmt.Errorf("submit: %w", err)
	}
	if err := ltx.Commit(); err != nil {
		return receipt, fmt.Errorf("submit: %w", err)
	}

	receipt.Status = ledger.StatusOK
	r.logger.Info("transaction committed", "id", receipt.ID, "seq", receipt.Seq)
	return receipt, nil
}

// reject logs a failed transaction and returns cause.
func (r *Runtime) reject(ctx context.Context, receipt Receipt, ix Instruction, signers map[address.PublicKey]bool, cause error) (Receipt, error) {
	receipt.Status = ledger.StatusFailed
	receipt.Err = cause

	rec := r.transactionRecord(receipt, ix, signers, ledger.StatusFailed, cause)
	seq, err := r.store.WriteTransaction(ctx, rec)
	if err != nil {
		return receipt, errors.Join(cause, fmt.Errorf("log failed transaction: %w", err))
	}
	receipt.Seq = seq

	attrs := []any{"id", receipt.ID, "seq", seq, "error", cause}
	if kind, ok := failure.KindOf(cause); ok {
		attrs = append(attrs, "code", kind.Code())
	}
	r.logger.Warn("transaction failed", attrs...)
	return receipt, cause
}

func (r *Runtime) transactionRecord(receipt Receipt, ix Instruction, signers map[address.PublicKey]bool, status string, cause error) ledger.TransactionRecord {
	rec := ledger.TransactionRecord{
		ID:          receipt.ID,
		ProgramID:   ix.ProgramID,
		Instruction: ix.Data,
		Status:      status,
		Logs:        receipt.Logs,
	}
	for _, meta := range ix.Accounts {
		if signers[meta.PublicKey] && meta.IsSigner {
			rec.Signers = append(rec.Signers, meta.PublicKey)
		}
	}
	if cause != nil {
		rec.ErrorMessage = cause.Error()
		if kind, ok := failure.KindOf(cause); ok {
			code := kind.Code()
			rec.ErrorCode = &code
		}
	}
	return rec
}

// loadedAccounts tracks the accounts handed to the program and their
// state before execution.
type loadedAccounts struct {
	infos    []*program.AccountInfo
	unique   []*program.AccountInfo
	original map[*program.AccountInfo]ledger.Account
}

// loadAccounts resolves metas against the ledger. Repeated keys share one
// AccountInfo; missing accounts appear empty and system-owned.
func (r *Runtime) loadAccounts(ctx context.Context, ltx *ledger.Tx, metas []AccountMeta, signers map[address.PublicKey]bool) (*loadedAccounts, error) {
	loaded := &loadedAccounts{original: make(map[*program.AccountInfo]ledger.Account)}
	byKey := make(map[address.PublicKey]*program.AccountInfo, len(metas))

	for _, meta := range metas {
		if info, ok := byKey[meta.PublicKey]; ok {
			info.IsSigner = info.IsSigner || (meta.IsSigner && signers[meta.PublicKey])
			info.IsWritable = info.IsWritable || meta.IsWritable
			loaded.infos = append(loaded.infos, info)
			continue
		}

		acct, found, err := ltx.GetAccount(ctx, meta.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("load account %s: %w", meta.PublicKey, err)
		}
		if !found {
			acct = ledger.Account{Address: meta.PublicKey, Owner: address.SystemProgramID}
		}

		info := &program.AccountInfo{
			Key:        meta.PublicKey,
			IsSigner:   meta.IsSigner && signers[meta.PublicKey],
			IsWritable: meta.IsWritable,
			Lamports:   acct.Lamports,
			Owner:      acct.Owner,
			Data:       bytes.Clone(acct.Data),
		}
		if len(acct.Data) == 0 {
			info.Data = nil
		}
		byKey[meta.PublicKey] = info
		loaded.infos = append(loaded.infos, info)
		loaded.unique = append(loaded.unique, info)
		loaded.original[info] = acct
	}
	return loaded, nil
}

func (l *loadedAccounts) changed(info *program.AccountInfo) bool {
	orig := l.original[info]
	return orig.Lamports != info.Lamports ||
		orig.Owner != info.Owner ||
		!bytes.Equal(orig.Data, info.Data)
}

func (l *loadedAccounts) checkReadonly() error {
	for _, info := range l.unique {
		if !info.IsWritable && l.changed(info) {
			return fmt.Errorf("%w: %s", ErrReadonlyModified, info.Key)
		}
	}
	return nil
}

// writable returns the writable accounts that changed during execution.
func (l *loadedAccounts) writable() []*program.AccountInfo {
	var out []*program.AccountInfo
	for _, info := range l.unique {
		if info.IsWritable && info.Key != address.SystemProgramID && l.changed(info) {
			out = append(out, info)
		}
	}
	return out
}

// newProgramLogger returns a logger that writes time-free text lines to w.
func newProgramLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func splitLogs(s string) []string {
	lines := []string{}
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
