// Package cli implements ledgerctl, the operator command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/giftstream/giftstream/internal/app"
	"github.com/giftstream/giftstream/internal/config"
	"github.com/giftstream/giftstream/internal/infra"
	"github.com/giftstream/giftstream/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate the giftstream ledger and reward engine",
	Long: `ledgerctl runs schema migrations and the operator tasks that sit
outside the HTTP API: reconciling balances against the transaction log,
replaying partially applied distributions and inspecting referral chains.
It reads the same environment variables as the API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig is swapped in tests.
var loadConfig = config.Load

// session is an open set of backends plus the wired services.
type session struct {
	container *app.Container
	backends  *infra.Backends
}

func (s *session) Close() {
	_ = s.backends.Close()
}

// openSession connects to the configured backends. Operator commands only
// make sense against a real database, so DATABASE_URL is required even in
// development.
func openSession(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	logger := logging.NewWithFile(cfg.LogLevel, cfg.LogFile)

	backends, err := infra.Connect(ctx, cfg.DatabaseURL, cfg.RedisURL, cfg.AppName+"-ctl")
	if err != nil {
		return nil, err
	}
	container, err := app.New(cfg, backends.DB, backends.Cache, logger)
	if err != nil {
		_ = backends.Close()
		return nil, err
	}
	return &session{container: container, backends: backends}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
