package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var unlockUserCommand = cobra.Command{
	Use:   "unlock",
	Short: "lifts a login lockout",
	Long:  `Clears the failed login counter and the lockout flag for the given email`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 1 || args[0] == "" {
			return errors.New("user unlock (email) - requires a email")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		redisClient := resolveRedisClient()
		tracker := resolveAttemptTracker(redisClient, nil)
		email := strings.ToLower(strings.TrimSpace(args[0]))
		tracker.Clear(cmd.Context(), email)
		fmt.Printf("Cleared lockout state for %s\r\n", email)
	},
}
