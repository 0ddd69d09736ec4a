package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/ssoguard/internal/application/dto"
	"github.com/turtacn/ssoguard/internal/bootstrap"
	"github.com/turtacn/ssoguard/internal/domain/models"
	"github.com/turtacn/ssoguard/internal/infrastructure/identity"
	"github.com/turtacn/ssoguard/pkg/utils"
)

func newIssueCommand() *cobra.Command {
	var roles []string
	cmd := &cobra.Command{
		Use:   "issue <subject>",
		Short: "Issue a token for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authorities := models.NewAuthoritySet()
			for _, r := range roles {
				authorities.Add(identity.NormalizeRole(r))
			}
			return withCore(cmd.Context(), func(core *bootstrap.Core) error {
				token, err := core.Tokens.Issue(cmd.Context(), args[0], authorities)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dto.NewTokenResponse(token))
			})
		},
	}
	cmd.Flags().StringSliceVarP(&roles, "role", "r", nil, "role to embed, ROLE_ is added when missing (repeatable)")
	return cmd
}

func newIntrospectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "introspect [token]",
		Short: "Report whether a token is active",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := tokenArg(cmd, args)
			if err != nil {
				return err
			}
			return withCore(cmd.Context(), func(core *bootstrap.Core) error {
				return printJSON(cmd.OutOrStdout(), dto.NewIntrospectionResponse(core.Tokens.Introspect(cmd.Context(), token)))
			})
		},
	}
}

func newRevokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke [token]",
		Short: "Revoke a token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := tokenArg(cmd, args)
			if err != nil {
				return err
			}
			return withCore(cmd.Context(), func(core *bootstrap.Core) error {
				if err := core.Tokens.Revoke(cmd.Context(), token); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", utils.TokenFingerprint(token))
				return nil
			})
		},
	}
}

func newHashPasswordCommand() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for the users[].password_hash setting",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := tokenArg(cmd, args)
			if err != nil {
				return err
			}
			if password == "" {
				return fmt.Errorf("password is required")
			}
			hash, err := identity.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", 12, "bcrypt cost")
	return cmd
}

// tokenArg returns the positional argument, or the first line of stdin when absent.
func tokenArg(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("no value given as argument or on stdin")
	}
	return strings.TrimSpace(line), nil
}
