package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

func decode[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

type workspace struct {
	dir string
	db  string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	return &workspace{dir: dir, db: filepath.Join(dir, "ledger.db")}
}

func (w *workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	args = append(args, "--db", w.db, "--format", "json")
	stdout, _, err := execute(t, args...)
	return stdout, err
}

func (w *workspace) keygen(t *testing.T, name string) (string, string) {
	t.Helper()
	path := filepath.Join(w.dir, name+".json")
	out, err := w.run(t, "keygen", "--out", path)
	require.NoError(t, err)
	resp := decode[KeygenResult](t, out)
	require.Equal(t, "ok", resp.Status)
	return path, resp.Data.PublicKey
}

func TestRecordLifecycle(t *testing.T) {
	w := newWorkspace(t)
	alice, alicePub := w.keygen(t, "alice")

	out, err := w.run(t, "airdrop", alice, "--lamports", "1000000000")
	require.NoError(t, err)
	drop := decode[AirdropResult](t, out)
	assert.Equal(t, alicePub, drop.Data.Address)
	assert.Equal(t, uint64(1_000_000_000), drop.Data.Balance)

	out, err = w.run(t, "derive", alice)
	require.NoError(t, err)
	derived := decode[DeriveResult](t, out)
	assert.Equal(t, alicePub, derived.Data.Identity)

	out, err = w.run(t, "create", "--keypair", alice, "--name", "Ann", "--message", "Hi")
	require.NoError(t, err)
	created := decode[SubmitResult](t, out)
	assert.Equal(t, "ok", created.Data.Status)
	assert.Equal(t, int64(1), created.Data.Seq)
	assert.Equal(t, derived.Data.Slot, created.Data.Slot)
	assert.Equal(t, alicePub, created.Data.Signer)

	out, err = w.run(t, "update", "--keypair", alice, "--name", "Ann", "--message", "Hello again")
	require.NoError(t, err)
	assert.Equal(t, int64(2), decode[SubmitResult](t, out).Data.Seq)

	out, err = w.run(t, "show", alice)
	require.NoError(t, err)
	shown := decode[ShowResult](t, out)
	assert.Equal(t, derived.Data.Slot, shown.Data.Slot)
	assert.True(t, shown.Data.Record.Initialized)
	assert.Equal(t, "Ann", shown.Data.Record.Name)
	assert.Equal(t, "Hello again", shown.Data.Record.Message)
	assert.Equal(t, uint64(7_850_880), shown.Data.Lamports)
	assert.Equal(t, int64(2), shown.Data.UpdatedSeq)

	out, err = w.run(t, "show", "--slot", derived.Data.Slot)
	require.NoError(t, err)
	assert.Equal(t, "Hello again", decode[ShowResult](t, out).Data.Record.Message)

	out, err = w.run(t, "create", "--keypair", alice, "--name", "Ann", "--message", "again")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	rejected := decode[any](t, out)
	assert.Equal(t, "error", rejected.Status)
	require.NotNil(t, rejected.Error)
	assert.Equal(t, ErrCodeTransaction, rejected.Error.Code)
	assert.Contains(t, rejected.Error.Message, "AllocationFailed (code 9)")

	out, err = w.run(t, "history", "--limit", "0")
	require.NoError(t, err)
	history := decode[[]HistoryEntry](t, out)
	require.Len(t, history.Data, 3)
	seqs := []int64{history.Data[0].Seq, history.Data[1].Seq, history.Data[2].Seq}
	assert.Equal(t, []int64{3, 2, 1}, seqs)
	assert.Equal(t, "failed", history.Data[0].Status)
	assert.Equal(t, "AllocationFailed", history.Data[0].ErrorKind)
	require.NotNil(t, history.Data[0].ErrorCode)
	assert.Equal(t, uint32(9), *history.Data[0].ErrorCode)
	assert.Equal(t, "ok", history.Data[2].Status)
	assert.Equal(t, []string{alicePub}, history.Data[2].Signers)

	out, err = w.run(t, "history", "--limit", "1")
	require.NoError(t, err)
	latest := decode[[]HistoryEntry](t, out).Data
	require.Len(t, latest, 1)
	assert.Equal(t, int64(3), latest[0].Seq)

	out, err = w.run(t, "list")
	require.NoError(t, err)
	listed := decode[[]ListEntry](t, out).Data
	require.Len(t, listed, 1)
	assert.Equal(t, derived.Data.Slot, listed[0].Slot)
	assert.Equal(t, "Ann", listed[0].Record.Name)
	assert.Equal(t, "Hello again", listed[0].Record.Message)
	assert.Empty(t, listed[0].Error)
}

func TestCreate_DataTooLarge(t *testing.T) {
	w := newWorkspace(t)
	alice, _ := w.keygen(t, "alice")
	_, err := w.run(t, "airdrop", alice)
	require.NoError(t, err)

	big := string(bytes.Repeat([]byte("x"), 992))
	out, err := w.run(t, "create", "--keypair", alice, "--name", big)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, decode[any](t, out).Error.Message, "DataTooLarge (code 0)")

	out, err = w.run(t, "show", alice)
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, decode[any](t, out).Error.Code)
}

func TestCreate_NormalizesText(t *testing.T) {
	w := newWorkspace(t)
	alice, _ := w.keygen(t, "alice")
	_, err := w.run(t, "airdrop", alice)
	require.NoError(t, err)

	_, err = w.run(t, "create", "--keypair", alice, "--name", "Rene\u0301e", "--message", "Hi")
	require.NoError(t, err)

	out, err := w.run(t, "show", alice)
	require.NoError(t, err)
	assert.Equal(t, "Ren\u00e9e", decode[ShowResult](t, out).Data.Record.Name)
}

func TestUpdate_StrictConfig(t *testing.T) {
	w := newWorkspace(t)
	alice, _ := w.keygen(t, "alice")
	bob, _ := w.keygen(t, "bob")
	for _, k := range []string{alice, bob} {
		_, err := w.run(t, "airdrop", k)
		require.NoError(t, err)
	}
	_, err := w.run(t, "create", "--keypair", alice, "--name", "Ann", "--message", "Hi")
	require.NoError(t, err)

	out, err := w.run(t, "derive", alice)
	require.NoError(t, err)
	slot := decode[DeriveResult](t, out).Data.Slot

	strict := filepath.Join(w.dir, "strict.cue")
	require.NoError(t, os.WriteFile(strict, []byte("strict_update: true\n"), 0o644))

	out, err = w.run(t, "update", "--keypair", bob, "--slot", slot, "--name", "Bob", "--message", "x", "--config", strict)
	require.Error(t, err)
	assert.Contains(t, decode[any](t, out).Error.Message, "AddressMismatch")

	_, err = w.run(t, "update", "--keypair", bob, "--slot", slot, "--name", "Bob", "--message", "x")
	require.NoError(t, err)
}

func TestCommandErrors(t *testing.T) {
	w := newWorkspace(t)
	badConfig := filepath.Join(w.dir, "bad.cue")
	require.NoError(t, os.WriteFile(badConfig, []byte("colour: \"blue\"\n"), 0o644))

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing keypair file", []string{"create", "--keypair", filepath.Join(w.dir, "nope.json")}, ErrCodeKeypair},
		{"bad identity", []string{"derive", "not-a-key"}, ErrCodeInput},
		{"bad config", []string{"history", "--config", badConfig}, ErrCodeConfig},
		{"show needs a target", []string{"show"}, ErrCodeInput},
		{"bad slot", []string{"show", "--slot", "0OIl"}, ErrCodeInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := w.run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			resp := decode[any](t, out)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestKeygen_RefusesOverwrite(t *testing.T) {
	w := newWorkspace(t)
	path, _ := w.keygen(t, "alice")

	_, err := w.run(t, "keygen", "--out", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = w.run(t, "keygen", "--out", path, "--force")
	require.NoError(t, err)
}

func TestTextOutput(t *testing.T) {
	w := newWorkspace(t)
	alice, _ := w.keygen(t, "alice")

	stdout, _, err := execute(t, "airdrop", alice, "--db", w.db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Credited 1000000000 lamports")

	stdout, _, err = execute(t, "create", "--keypair", alice, "--name", "Ann", "--message", "Hi", "--db", w.db, "-v")
	require.NoError(t, err)
	assert.Regexp(t, `✓ create tx [0-9a-f-]{36} \(seq 1\)`, stdout)
	assert.Contains(t, stdout, "log: ")

	stdout, _, err = execute(t, "show", alice, "--db", w.db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Name:    Ann")
	assert.Contains(t, stdout, "Message: Hi")

	stdout, _, err = execute(t, "history", "--db", w.db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok")
}
