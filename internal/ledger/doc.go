// Package ledger provides SQLite-backed durable storage for record slots
// and the transaction log of the runtime that executes the record program.
//
// The ledger holds two tables:
//   - accounts: every funded or allocated account (address, owner,
//     lamports, data)
//   - transactions: one row per submitted transaction, successful or not
//
// # Atomicity
//
// The runtime executes each transaction inside one SQL transaction
// obtained from Store.Begin. Account writes become visible only on
// Commit; a failed instruction rolls back and leaves every slot unchanged.
// Failed transactions are still logged, in a separate statement after
// the rollback.
//
// # Ordering
//
// Transactions are ordered by seq, a logical counter assigned by the
// ledger (MAX(seq)+1), never by wall-clock time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package ledger
