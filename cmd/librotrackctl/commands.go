package main

import (
	"fmt"
	"log/slog"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/adibqt/LibroTrack/internal/config"
	"github.com/adibqt/LibroTrack/internal/database/pgstore"
	"github.com/adibqt/LibroTrack/internal/events"
	"github.com/adibqt/LibroTrack/internal/models"
	"github.com/adibqt/LibroTrack/internal/services"
)

var output = jsoniter.ConfigCompatibleWithStandardLibrary

func printJSON(cmd *cobra.Command, v any) error {
	b, err := output.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, db, err := connect()
			if err != nil {
				return err
			}
			defer db.Close()

			return db.Migrate(cmd.Context())
		},
	}
}

func newExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Expire every PENDING reservation past its expiry date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := connect()
			if err != nil {
				return err
			}
			defer db.Close()

			policy, err := services.PolicyFromConfig(cfg.Lending)
			if err != nil {
				return err
			}
			publisher, err := events.NewPublisher(cfg.Events, slog.Default())
			if err != nil {
				return err
			}
			defer publisher.Close()

			lifecycle := services.NewLifecycle(pgstore.New(db.Pool), policy,
				services.WithPublisher(publisher),
				services.WithLogger(slog.Default()),
			)

			result, err := lifecycle.ExpireDue(cmd.Context(), models.SystemIdentity)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		identity models.Identity
		role     string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token with the configured private key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			identity.Role = models.UserRole(role)
			switch identity.Role {
			case models.RoleAdmin, models.RoleLibrarian, models.RoleMember:
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWT.PrivateKey == "" {
				return fmt.Errorf("jwt.private_key is not configured")
			}

			auth, err := services.NewAuthService(cfg.JWT.PrivateKey, "", ttl, slog.Default(), nil)
			if err != nil {
				return err
			}
			token, err := auth.GenerateToken(identity)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().Int64Var(&identity.UserID, "user-id", 0, "member id carried by the token")
	cmd.Flags().StringVar(&identity.Username, "username", "", "username carried by the token")
	cmd.Flags().StringVar(&role, "role", string(models.RoleMember), "admin, librarian or member")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func newMemberCmd() *cobra.Command {
	member := &cobra.Command{
		Use:   "member",
		Short: "Manage the member read model",
	}

	var (
		m      models.Member
		status string
	)
	upsert := &cobra.Command{
		Use:   "upsert",
		Short: "Create or update a member copied from the identity service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m.Status = models.MemberStatus(status)
			if m.Status != models.MemberStatusActive && m.Status != models.MemberStatusSuspended {
				return fmt.Errorf("unknown status %q", status)
			}

			_, db, err := connect()
			if err != nil {
				return err
			}
			defer db.Close()

			saved, err := pgstore.New(db.Pool).UpsertMember(cmd.Context(), m)
			if err != nil {
				return err
			}
			return printJSON(cmd, saved)
		},
	}
	upsert.Flags().Int64Var(&m.ID, "id", 0, "user id assigned by the identity service")
	upsert.Flags().StringVar(&m.Username, "username", "", "username")
	upsert.Flags().StringVar(&m.Email, "email", "", "email address")
	upsert.Flags().StringVar(&m.FirstName, "first-name", "", "first name")
	upsert.Flags().StringVar(&m.LastName, "last-name", "", "last name")
	upsert.Flags().Int32Var(&m.MaxBooksAllowed, "max-books", models.DefaultMaxBooksAllowed, "borrowing limit")
	upsert.Flags().StringVar(&status, "status", string(models.MemberStatusActive), "ACTIVE or SUSPENDED")
	_ = upsert.MarkFlagRequired("id")
	_ = upsert.MarkFlagRequired("username")

	member.AddCommand(upsert)
	return member
}
