package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgo/atelier/internal/config"
	"github.com/forgo/atelier/internal/model"
	"github.com/forgo/atelier/pkg/jwt"
)

var tokenOpts struct {
	userID  string
	email   string
	role    string
	expMins int
	json    bool
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token signed with the server key",
	Long: `Signs an access token with JWT_PRIVATE_KEY_PATH. The user does not
need to exist; the token is meant for local testing and scripted setup.

Example:
  atelierctl token --role organizer --user user:alice`,
	RunE: runToken,
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenOpts.userID, "user", "user:admin", "User ID placed in the token")
	f.StringVar(&tokenOpts.email, "email", "admin@atelier.local", "Email placed in the token")
	f.StringVar(&tokenOpts.role, "role", string(model.UserRoleAdmin), "Role claim: member, organizer or admin")
	f.IntVar(&tokenOpts.expMins, "exp", 60*24*7, "Expiration in minutes")
	f.BoolVar(&tokenOpts.json, "json", false, "Print as JSON")
}

func runToken(cmd *cobra.Command, args []string) error {
	role := model.UserRole(tokenOpts.role)
	if !role.IsValid() {
		return fmt.Errorf("unknown role %q", tokenOpts.role)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		Issuer:         cfg.JWT.Issuer,
		Audience:       cfg.JWT.Audience,
		ExpirationMins: tokenOpts.expMins,
	})
	if err != nil {
		return fmt.Errorf("load signing key (run `atelierctl keys` first?): %w", err)
	}

	token, err := jwtService.Sign(jwt.Claims{
		UserID:   tokenOpts.userID,
		Email:    tokenOpts.email,
		Username: "atelierctl",
		Role:     string(role),
	})
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	out := cmd.OutOrStdout()
	if tokenOpts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   tokenOpts.expMins * 60,
			"user_id":      tokenOpts.userID,
			"role":         role,
		})
	}

	expires := time.Now().Add(time.Duration(tokenOpts.expMins) * time.Minute)
	fmt.Fprintf(out, "User:    %s (%s)\n", tokenOpts.userID, role)
	fmt.Fprintf(out, "Expires: %s\n\n", expires.Format(time.RFC3339))
	fmt.Fprintln(out, token)
	return nil
}

var keysOpts struct {
	force bool
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the RSA key pair used to sign access tokens",
	Long: `Writes a new key pair to JWT_PRIVATE_KEY_PATH and JWT_PUBLIC_KEY_PATH.
Existing keys are kept unless --force is given; replacing them invalidates
every token already issued.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		if !keysOpts.force {
			if _, err := os.Stat(cfg.JWT.PrivateKeyPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to replace it)", cfg.JWT.PrivateKeyPath)
			}
		}

		for _, p := range []string{cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath} {
			if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
				return err
			}
		}
		if err := jwt.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath)
		return nil
	},
}

func init() {
	keysCmd.Flags().BoolVar(&keysOpts.force, "force", false, "Overwrite existing keys")
}
