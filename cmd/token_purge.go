package cmd

import (
	"fmt"
	"os"

	"github.com/sepetli/kimlik/tokens"
	"github.com/spf13/cobra"
)

var tokenPurgeCommand = cobra.Command{
	Use:   "purge",
	Short: "removes expired blacklist entries and sessions",
	Long: `Runs the housekeeping sweep once: blacklist rows whose tokens have
	expired on their own, run out sessions and used up reset tokens are removed`,
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
		removed, err := blacklist.CleanupExpired(cmd.Context())
		if err != nil {
			fmt.Printf("Unable to purge blacklist: %s\r\n", err)
			os.Exit(1)
			return
		}
		sessions, err := dataStore.DeleteExpiredSessions(cmd.Context())
		if err != nil {
			fmt.Printf("Unable to purge sessions: %s\r\n", err)
			os.Exit(1)
			return
		}
		resets, err := dataStore.DeleteExpiredResetTokens(cmd.Context())
		if err != nil {
			fmt.Printf("Unable to purge reset tokens: %s\r\n", err)
			os.Exit(1)
			return
		}
		fmt.Printf(
			"Purged %d blacklist entries, %d sessions, %d reset tokens\r\n",
			removed,
			sessions,
			resets,
		)
	},
}
