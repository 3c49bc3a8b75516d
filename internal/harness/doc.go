// Package harness runs scripted record program scenarios.
//
// A scenario funds a set of test identities, submits a sequence of
// transactions against a fresh in-memory ledger and checks each outcome
// and the final ledger state.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: create_then_update
//	description: "What this scenario validates"
//	strict_update: false
//	setup:
//	  - airdrop: alice
//	    lamports: 1000000000
//	steps:
//	  - op: create
//	    as: alice
//	    name: Ann
//	    message: Hi
//	    expect: ok
//	  - op: update
//	    as: alice
//	    name_len: 992
//	    expect: DataTooLarge
//	assertions:
//	  - type: record
//	    identity: alice
//	    name: Ann
//	    message: Hi
//
// Identities are labels. Each label maps to a fixed ed25519 keypair
// (testutil.Keypair), so derived addresses are stable across runs.
//
// # Step Options
//
//   - op: create, update or raw
//   - as: the acting identity
//   - name, message: record fields; name_len and message_len generate
//     fields of the given length instead
//   - slot: target another identity's derived slot
//   - unsigned: pass the acting identity without a signature
//   - data: hex instruction bytes for raw steps
//   - expect: "ok" or the failure name (DataTooLarge, AddressMismatch, ...)
//
// # Assertion Types
//
//   - record: the identity's slot holds an initialized record with the
//     given name and message
//   - no_slot: the identity's slot was never allocated
//   - balance: the identity's account holds exactly lamports
//   - tx_count: the transaction log holds count entries, optionally
//     filtered by status
//
// # Deterministic Testing
//
// Transaction ids come from testutil.SequentialIDGenerator and the
// program id is fixed, so traces are stable for golden comparison.
package harness
