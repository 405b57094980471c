package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/linkhub/internal/identity"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development session token",
	Long: `Token signs an HS256 session token with LINKHUB_SESSION_SECRET.
Use it to call the owner API locally without an identity provider.

Example:
  linkhub token --sub user_123
  curl -H "Authorization: Bearer $(linkhub token --sub user_123)" localhost:8080/api/profiles`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "sub", "", "identity id to put in the sub claim (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("sub")
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := os.Getenv("LINKHUB_SESSION_SECRET")
	if secret == "" {
		return errors.New("LINKHUB_SESSION_SECRET is not set")
	}

	tok, err := identity.NewIssuer([]byte(secret), os.Getenv("LINKHUB_SESSION_ISSUER")).Issue(tokenSubject, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
