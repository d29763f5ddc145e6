package cmd

import (
	"fmt"
	"os"

	"github.com/sepetli/kimlik/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ConfigFileLocation is of the config to load
var ConfigFileLocation string

// TopLevelLogger is the logger all loggers come from
var TopLevelLogger *zap.Logger

// LoadedConfig is the currently loaded configuration after initial bootstrapping
var LoadedConfig *config.Configuration

// FileSystemsConfig consists of the filesystems to use (either local or embed)
var FileSystemsConfig *config.FileSystems

var rootCommand = cobra.Command{
	Use:   "kimlik",
	Short: "kimlik user registration and session service",
	Long: `kimlik serves the registration, email verification and JWT
	session endpoints of the sepetli storefront and admin panel`,
	Run: func(cmd *cobra.Command, args []string) {
		serveCommand.Run(cmd, args)
	},
}

func Execute() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {

	rootCommand.PersistentFlags().
		StringVar(&ConfigFileLocation, "config", "", "config file to be used")

	verifyCommand.AddCommand(&sendTestMailCommand)

	userCommand.AddCommand(&listUsersCommand)
	userCommand.AddCommand(&userCreateCommand)
	userCommand.AddCommand(&unlockUserCommand)

	tokenCommand.AddCommand(&tokenRevokeCommand)
	tokenCommand.AddCommand(&tokenPurgeCommand)

	rootCommand.AddCommand(&verifyCommand)
	rootCommand.AddCommand(&userCommand)
	rootCommand.AddCommand(&tokenCommand)
	rootCommand.AddCommand(&serveCommand)
}
