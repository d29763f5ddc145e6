package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/sepetli/kimlik/tokens"
	"github.com/spf13/cobra"
)

var tokenRevokeReason string

var tokenRevokeCommand = cobra.Command{
	Use:   "revoke",
	Short: "puts a token on the blacklist",
	Long:  `Revokes the presented token, it will be rejected until its natural expiry`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 || args[0] == "" {
			return errors.New("token revoke (token) - requires a token")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		dataStore := mustResolveUsableDataStore()
		dispatcher := bootstrapDispatcher(dataStore.Auditor())
		issuer := tokens.NewIssuer(TopLevelLogger.Named("token_issuer"), LoadedConfig.JWT)
		decoder := tokens.NewTokenVerifier(TopLevelLogger.Named("token_decoder"), issuer, nil)
		blacklist := tokens.NewBlacklist(
			TopLevelLogger.Named("token_blacklist"),
			dataStore,
			decoder,
			dispatcher,
		)
		claims, err := blacklist.Add(cmd.Context(), args[0], tokenRevokeReason)
		if err != nil {
			fmt.Printf("Unable to revoke token: %s\r\n", err)
			os.Exit(1)
			return
		}
		fmt.Printf("Revoked %s token %s for user %d\r\n", claims.Type(), claims.ID(), claims.UserID())
	},
}

func init() {
	tokenRevokeCommand.Flags().
		StringVar(&tokenRevokeReason, "reason", "admin_revoked", "reason recorded with the blacklist entry")
}
