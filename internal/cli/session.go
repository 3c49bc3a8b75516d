package cli

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/introbook/internal/address"
	"github.com/roach88/introbook/internal/config"
	"github.com/roach88/introbook/internal/keys"
	"github.com/roach88/introbook/internal/ledger"
	"github.com/roach88/introbook/internal/program"
	"github.com/roach88/introbook/internal/runtime"
)

// session is the ledger-backed state shared by commands that submit or
// read transactions.
type session struct {
	cfg       config.Config
	programID address.PublicKey
	store     *ledger.Store
	runtime   *runtime.Runtime
	logger    *slog.Logger
}

// loadConfig reads the configured CUE file and applies flag overrides.
func (o *RootOptions) loadConfig() (config.Config, address.PublicKey, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return config.Config{}, address.PublicKey{}, err
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	programID, err := cfg.ProgramKey()
	if err != nil {
		return config.Config{}, address.PublicKey{}, err
	}
	return cfg, programID, nil
}

func (o *RootOptions) logger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level := cfg.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openSession loads configuration and opens the ledger. Failures are
// reported through out.
func (o *RootOptions) openSession(cmd *cobra.Command, out *OutputFormatter) (*session, error) {
	cfg, programID, err := o.loadConfig()
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err.Error(), err)
	}

	logger := o.logger(cmd, cfg)
	logger.Debug("opening ledger", "path", cfg.Database)
	st, err := ledger.Open(cfg.Database)
	if err != nil {
		return nil, out.Fail(ExitCommandError, ErrCodeLedger, "failed to open ledger", err.Error(), err)
	}

	return &session{
		cfg:       cfg,
		programID: programID,
		store:     st,
		runtime: runtime.New(st, runtime.Options{
			ProgramID: programID,
			Rent:      &cfg.Rent,
			Program:   program.Options{StrictUpdate: cfg.StrictUpdate},
			Logger:    logger,
		}),
		logger: logger,
	}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing ledger", "error", err)
	}
}

// resolveIdentity accepts a base58 public key or the path of a keypair file.
func resolveIdentity(arg string) (address.PublicKey, error) {
	if _, err := os.Stat(arg); err == nil {
		kp, err := keys.Load(arg)
		if err != nil {
			return address.PublicKey{}, err
		}
		return kp.Public(), nil
	}
	key, err := address.ParsePublicKey(arg)
	if err != nil {
		return address.PublicKey{}, errors.Join(err, errors.New("argument is neither a public key nor a keypair file"))
	}
	return key, nil
}
