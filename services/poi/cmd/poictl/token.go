package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/utafrali/PoiCatalog/pkg/auth"
	"github.com/utafrali/PoiCatalog/pkg/middleware"
)

var (
	tokenUser   string
	tokenEmail  string
	tokenRole   string
	tokenOrg    string
	tokenExpiry time.Duration
)

// tokenCmd signs an access token with the server's JWT secret.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for local testing and operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch tokenRole {
		case middleware.RoleUser, middleware.RoleModerator, middleware.RoleAdmin:
		default:
			return fmt.Errorf("unknown role %q", tokenRole)
		}

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		signed, err := auth.NewJWTManager(cfg.JWTSecret, tokenExpiry).Issue(middleware.Claims{
			UserID:         tokenUser,
			Email:          tokenEmail,
			Role:           tokenRole,
			OrganizationID: tokenOrg,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (required)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "user email")
	tokenCmd.Flags().StringVar(&tokenRole, "role", middleware.RoleUser, "user, moderator or admin")
	tokenCmd.Flags().StringVar(&tokenOrg, "org", "", "organization id")
	tokenCmd.Flags().DurationVar(&tokenExpiry, "expiry", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
