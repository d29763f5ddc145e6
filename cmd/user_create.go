package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/sepetli/kimlik/db"
	"github.com/sepetli/kimlik/user"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
)

var userCreateIsAdmin bool

var userCreateCommand = cobra.Command{
	Use:   "create",
	Short: "launches a on terminal user creation dialog",
	Long: `this command may be used to create a user account from command line,
	the account is created pre-verified and skips the email verification flow`,
	Run: func(cmd *cobra.Command, args []string) {
		dataStore := mustResolveUsableDataStore()
		reader := bufio.NewReader(os.Stdin)

		fmt.Println("email?")
		email, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("Unable to read email: %s", err)
			os.Exit(1)
			return
		}
		email = strings.Trim(email, " \t\r\n")

		fmt.Println("first name?")
		firstName, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("Unable to read first name: %s", err)
			os.Exit(1)
			return
		}
		firstName = strings.Trim(firstName, " \t\r\n")

		fmt.Println("last name?")
		lastName, err := reader.ReadString('\n')
		if err != nil {
			fmt.Printf("Unable to read last name: %s", err)
			os.Exit(1)
			return
		}
		lastName = strings.Trim(lastName, " \t\r\n")

		policy := user.NewPasswordPolicy(LoadedConfig.Behaviour.PasswordMinLength)
		fmt.Println("password?")
		pwd, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			fmt.Printf("Unable to read password: %s", err)
			os.Exit(1)
			return
		}
		for len(policy.Validate(string(pwd))) > 0 {
			fmt.Printf("%s.\r\n", policy.Describe(policy.Validate(string(pwd))))
			fmt.Println("password?")
			pwd, err = term.ReadPassword(int(syscall.Stdin))
			if err != nil {
				fmt.Printf("Unable to read password: %s", err)
				os.Exit(1)
				return
			}
		}

		hashed, err := bcrypt.GenerateFromPassword(pwd, bcrypt.DefaultCost)
		if err != nil {
			fmt.Printf("Unable to hash password: %s", err)
			os.Exit(1)
			return
		}
		id, err := dataStore.InsertUser(cmd.Context(), db.NewUser{
			Email:      strings.ToLower(email),
			Password:   string(hashed),
			FirstName:  firstName,
			LastName:   lastName,
			IsAdmin:    userCreateIsAdmin,
			IsVerified: true,
			IsActive:   true,
		})
		if err != nil {
			fmt.Printf("Unable to create user: %s \r\n", err)
			os.Exit(1)
			return
		}
		fmt.Printf("Created user for email %s with id: %v", email, id)
	},
}

func init() {
	userCreateCommand.Flags().
		BoolVar(&userCreateIsAdmin, "admin", false, "create an admin account")
}
