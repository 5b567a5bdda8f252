package cmd

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-school-payments/app/auth"
)

var (
	tokenUserID string
	tokenUser   string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Bearer token utilities",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a bearer token for calling the API",
	Run: func(cmd *cobra.Command, _ []string) {
		cfg := mustLoadConfig()

		if strings.TrimSpace(tokenUserID) == "" || strings.TrimSpace(tokenUser) == "" {
			logrus.Fatal("--user-id and --user are required")
		}

		token, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Issue(tokenUserID, tokenUser)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to issue token")
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
	},
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenUserID, "user-id", "", "User id claim")
	tokenIssueCmd.Flags().StringVar(&tokenUser, "user", "", "User name claim")
	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(tokenCmd)
}
