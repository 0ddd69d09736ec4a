// Package cli implements the ssoguard-admin command line tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/ssoguard/internal/bootstrap"
	"github.com/turtacn/ssoguard/internal/config"
)

var configFile string

// NewRootCommand builds the ssoguard-admin command tree.
// NewRootCommand 构建 ssoguard-admin 命令树。
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ssoguard-admin",
		Short: "Administer ssoguard tokens from the command line",
		Long: `ssoguard-admin builds the same token service as the server from its config
file and talks to the same revocation backend, so tokens issued or revoked here are
honoured by running instances.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config.yaml")

	root.AddCommand(
		newIssueCommand(),
		newIntrospectCommand(),
		newRevokeCommand(),
		newHashPasswordCommand(),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// withCore loads the config and builds the token core for the duration of fn.
func withCore(ctx context.Context, fn func(*bootstrap.Core) error) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}
	if !cfg.SSO.Enabled {
		return fmt.Errorf("sso is disabled in %s", displayName(configFile))
	}
	core, err := bootstrap.NewCore(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer core.Close()
	return fn(core)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func displayName(path string) string {
	if path == "" {
		return "the default config"
	}
	return path
}
