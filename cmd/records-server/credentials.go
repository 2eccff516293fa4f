package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/healthoffice/records/internal/config"
	"github.com/healthoffice/records/internal/domain/identity"
	"github.com/healthoffice/records/internal/platform/auth"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			employeeID, _ := cmd.Flags().GetInt64("employee")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			if employeeID <= 0 {
				return fmt.Errorf("--employee is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.AuthSigningKey == "" {
				return fmt.Errorf("AUTH_SIGNING_KEY is not set")
			}

			token, err := auth.IssueToken([]byte(cfg.AuthSigningKey), cfg.AuthIssuer, employeeID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64("employee", 0, "Employee id placed in the token subject")
	cmd.Flags().Duration("ttl", 8*time.Hour, "Token lifetime")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Read a password from stdin and print its bcrypt hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			cost, _ := cmd.Flags().GetInt("cost")
			if !cmd.Flags().Changed("cost") {
				if cfg, err := config.Load(); err == nil {
					cost = cfg.BcryptCost
				}
			}
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := identity.HashPassword(password, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().Int("cost", 10, "bcrypt cost (defaults to BCRYPT_COST)")
	return cmd
}

// readPassword returns the first line of r without its line terminator.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("password must not be empty")
	}
	return line, nil
}
