package main

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/spf13/cobra"

	"campus-gate-backend/internal/auth"
	"campus-gate-backend/internal/clock"
	"campus-gate-backend/internal/model"
)

type tokenOptions struct {
	ID    string
	Role  string
	Name  string
	Shift string
	TTL   time.Duration
}

// newTokenCommand issues bearer tokens signed with the configured secret.
// Identities are managed elsewhere; this is for operators and local testing.
func newTokenCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &tokenOptions{}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(rootOpts, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "identity id (the university id for users)")
	cmd.Flags().StringVar(&opts.Role, "role", string(auth.RoleGuard), "role: guard, admin or user")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Shift, "shift", "", "assigned shift for guards: day or night")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func runToken(rootOpts *rootOptions, opts *tokenOptions, out io.Writer) error {
	role := auth.Role(opts.Role)
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", opts.Role)
	}
	shift := model.Shift(opts.Shift)
	if shift != "" && shift != model.ShiftDay && shift != model.ShiftNight {
		return fmt.Errorf("invalid shift %q", opts.Shift)
	}

	cfg, err := loadConfig(log.New(io.Discard, "", 0), rootOpts.ConfigPath)
	if err != nil {
		return err
	}

	authority := auth.NewAuthority(cfg.Auth.JWTSecret, cfg.Auth.Issuer, clock.Real())
	token, err := authority.Issue(auth.Identity{ID: opts.ID, Role: role, Name: opts.Name, Shift: shift}, opts.TTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}
