package cmd

import (
	"github.com/spf13/cobra"
)

var verifyCommand = cobra.Command{
	Use:   "verify",
	Short: "setup verification commands",
	Long:  `this section harbors commands to verify the current setup`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}
