package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/introbook/internal/address"
)

// Transaction status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// TransactionRecord is one entry of the transaction log.
type TransactionRecord struct {
	ID           string              `json:"id"`
	Seq          int64               `json:"seq"`
	ProgramID    address.PublicKey   `json:"program_id"`
	Instruction  []byte              `json:"instruction"`
	Signers      []address.PublicKey `json:"signers"`
	Status       string              `json:"status"`
	ErrorCode    *uint32             `json:"error_code,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Logs         []string            `json:"logs"`
}

// Tx is an open ledger transaction. Account writes become visible on
// Commit. Rollback is a no-op after Commit.
type Tx struct {
	tx *sql.Tx
}

// Begin opens a ledger transaction.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// GetAccount returns the account at addr as seen inside the transaction.
func (t *Tx) GetAccount(ctx context.Context, addr address.PublicKey) (Account, bool, error) {
	return getAccount(ctx, t.tx, addr)
}

// PutAccount inserts or replaces an account.
func (t *Tx) PutAccount(ctx context.Context, acct Account) error {
	return putAccount(ctx, t.tx, acct)
}

// NextSeq returns the seq the next logged transaction will receive.
func (t *Tx) NextSeq(ctx context.Context) (int64, error) {
	return nextSeq(ctx, t.tx)
}

// WriteTransaction appends rec to the log inside the transaction.
// rec.Seq is assigned by the ledger and returned.
func (t *Tx) WriteTransaction(ctx context.Context, rec TransactionRecord) (int64, error) {
	return writeTransaction(ctx, t.tx, rec)
}

// Commit makes all writes visible.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Rollback discards all writes.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// WriteTransaction appends rec to the log outside any open transaction.
// Used for transactions whose effects were rolled back.
func (s *Store) WriteTransaction(ctx context.Context, rec TransactionRecord) (int64, error) {
	return writeTransaction(ctx, s.db, rec)
}

// GetTransaction returns the logged transaction with the given id.
func (s *Store) GetTransaction(ctx context.Context, id string) (TransactionRecord, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, program_id, instruction, signers, status, error_code, error_message, logs
		FROM transactions
		WHERE id = ?
	`, id)
	if err != nil {
		return TransactionRecord{}, false, fmt.Errorf("query transaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return TransactionRecord{}, false, fmt.Errorf("query transaction: %w", err)
		}
		return TransactionRecord{}, false, nil
	}
	rec, err := scanTransaction(rows)
	if err != nil {
		return TransactionRecord{}, false, err
	}
	return rec, true, nil
}

// ListTransactions returns the most recent limit transactions in seq order.
// limit <= 0 returns the whole log.
func (s *Store) ListTransactions(ctx context.Context, limit int) ([]TransactionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, program_id, instruction, signers, status, error_code, error_message, logs
		FROM (
			SELECT * FROM transactions
			ORDER BY seq DESC
			LIMIT ?
		)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	records := []TransactionRecord{}
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return records, nil
}

func nextSeq(ctx context.Context, q querier) (int64, error) {
	var seq int64
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM transactions`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next seq: %w", err)
	}
	return seq, nil
}

func writeTransaction(ctx context.Context, q querier, rec TransactionRecord) (int64, error) {
	signersJSON, err := marshalSigners(rec.Signers)
	if err != nil {
		return 0, fmt.Errorf("write transaction: %w", err)
	}
	logsJSON, err := marshalLogs(rec.Logs)
	if err != nil {
		return 0, fmt.Errorf("write transaction: %w", err)
	}

	var errorCode any
	if rec.ErrorCode != nil {
		errorCode = int64(*rec.ErrorCode)
	}
	instruction := rec.Instruction
	if instruction == nil {
		instruction = []byte{}
	}

	var seq int64
	err = q.QueryRowContext(ctx, `
		INSERT INTO transactions
		(id, seq, program_id, instruction, signers, status, error_code, error_message, logs)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM transactions), ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq
	`,
		rec.ID,
		rec.ProgramID.String(),
		instruction,
		signersJSON,
		rec.Status,
		errorCode,
		rec.ErrorMessage,
		logsJSON,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("write transaction: %w", err)
	}
	return seq, nil
}

func scanTransaction(rows *sql.Rows) (TransactionRecord, error) {
	var (
		rec               TransactionRecord
		programID         string
		signersJSON, logs string
		errorCode         sql.NullInt64
	)
	err := rows.Scan(
		&rec.ID,
		&rec.Seq,
		&programID,
		&rec.Instruction,
		&signersJSON,
		&rec.Status,
		&errorCode,
		&rec.ErrorMessage,
		&logs,
	)
	if err != nil {
		return TransactionRecord{}, fmt.Errorf("scan transaction: %w", err)
	}

	if rec.ProgramID, err = address.ParsePublicKey(programID); err != nil {
		return TransactionRecord{}, fmt.Errorf("scan transaction program: %w", err)
	}
	if rec.Signers, err = unmarshalSigners(signersJSON); err != nil {
		return TransactionRecord{}, err
	}
	if rec.Logs, err = unmarshalLogs(logs); err != nil {
		return TransactionRecord{}, err
	}
	if errorCode.Valid {
		code := uint32(errorCode.Int64)
		rec.ErrorCode = &code
	}
	return rec, nil
}

// marshalSigners converts signer keys to a JSON array of base58 strings.
func marshalSigners(signers []address.PublicKey) (string, error) {
	if signers == nil {
		signers = []address.PublicKey{}
	}
	data, err := json.Marshal(signers)
	if err != nil {
		return "", fmt.Errorf("marshal signers: %w", err)
	}
	return string(data), nil
}

func unmarshalSigners(data string) ([]address.PublicKey, error) {
	signers := []address.PublicKey{}
	if data == "" {
		return signers, nil
	}
	if err := json.Unmarshal([]byte(data), &signers); err != nil {
		return nil, fmt.Errorf("unmarshal signers: %w", err)
	}
	return signers, nil
}

// marshalLogs converts program log lines to a JSON array.
func marshalLogs(logs []string) (string, error) {
	if logs == nil {
		logs = []string{}
	}
	data, err := json.Marshal(logs)
	if err != nil {
		return "", fmt.Errorf("marshal logs: %w", err)
	}
	return string(data), nil
}

func unmarshalLogs(data string) ([]string, error) {
	logs := []string{}
	if data == "" {
		return logs, nil
	}
	if err := json.Unmarshal([]byte(data), &logs); err != nil {
		return nil, fmt.Errorf("unmarshal logs: %w", err)
	}
	return logs, nil
}
