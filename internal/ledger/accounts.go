package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/introbook/internal/address"
)

// Account is a stored account. Accounts that were never funded or
// allocated do not exist in the ledger.
type Account struct {
	Address    address.PublicKey
	Owner      address.PublicKey
	Lamports   uint64
	Data       []byte
	UpdatedSeq int64
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetAccount returns the account at addr. found is false if the account
// does not exist.
func (s *Store) GetAccount(ctx context.Context, addr address.PublicKey) (Account, bool, error) {
	return getAccount(ctx, s.db, addr)
}

// ListAccounts returns all accounts owned by owner ordered by address.
func (s *Store) ListAccounts(ctx context.Context, owner address.PublicKey) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, owner, lamports, data, updated_seq
		FROM accounts
		WHERE owner = ?
		ORDER BY address COLLATE BINARY ASC
	`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// Airdrop credits lamports to addr, creating a system-owned account if
// needed. Only meaningful on a local ledger.
func (s *Store) Airdrop(ctx context.Context, addr address.PublicKey, lamports uint64) (Account, error) {
	if lamports > math.MaxInt64 {
		return Account{}, fmt.Errorf("airdrop: %d lamports overflows ledger", lamports)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Account{}, fmt.Errorf("airdrop: begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, found, err := getAccount(ctx, tx, addr)
	if err != nil {
		return Account{}, fmt.Errorf("airdrop: %w", err)
	}
	if !found {
		acct = Account{Address: addr, Owner: address.SystemProgramID, Data: []byte{}}
	}
	if acct.Lamports > math.MaxInt64-lamports {
		return Account{}, fmt.Errorf("airdrop: balance of %s would overflow", addr)
	}
	acct.Lamports += lamports

	if err := putAccount(ctx, tx, acct); err != nil {
		return Account{}, fmt.Errorf("airdrop: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Account{}, fmt.Errorf("airdrop: commit: %w", err)
	}
	return acct, nil
}

func getAccount(ctx context.Context, q querier, addr address.PublicKey) (Account, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT address, owner, lamports, data, updated_seq
		FROM accounts
		WHERE address = ?
	`, addr.String())

	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return acct, true, nil
}

func putAccount(ctx context.Context, q querier, acct Account) error {
	if acct.Lamports > math.MaxInt64 {
		return fmt.Errorf("put account %s: lamports overflow", acct.Address)
	}
	data := acct.Data
	if data == nil {
		data = []byte{}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO accounts (address, owner, lamports, data, updated_seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			owner = excluded.owner,
			lamports = excluded.lamports,
			data = excluded.data,
			updated_seq = excluded.updated_seq
	`,
		acct.Address.String(),
		acct.Owner.String(),
		int64(acct.Lamports),
		data,
		acct.UpdatedSeq,
	)
	if err != nil {
		return fmt.Errorf("put account %s: %w", acct.Address, err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (Account, error) {
	var (
		addr, owner string
		lamports    int64
		acct        Account
	)
	if err := row.Scan(&addr, &owner, &lamports, &acct.Data, &acct.UpdatedSeq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, err
		}
		return Account{}, fmt.Errorf("scan account: %w", err)
	}

	var err error
	if acct.Address, err = address.ParsePublicKey(addr); err != nil {
		return Account{}, fmt.Errorf("scan account address: %w", err)
	}
	if acct.Owner, err = address.ParsePublicKey(owner); err != nil {
		return Account{}, fmt.Errorf("scan account owner: %w", err)
	}
	acct.Lamports = uint64(lamports)
	if acct.Data == nil {
		acct.Data = []byte{}
	}
	return acct, nil
}
