package cmd

import (
	"context"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listUsersCommand = cobra.Command{
	Use:   "ls",
	Short: "Lists all users",
	Long:  `This will list all users`,
	Run: func(cmd *cobra.Command, args []string) {
		dataStore := mustResolveUsableDataStore()
		users, total, err := dataStore.Users(context.Background(), 1, math.MaxInt32)
		if err != nil {
			fmt.Printf("Unable to load users: %s", err)
			os.Exit(1)
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 1, 1, 1, ' ', 0)
		fmt.Fprintf(
			w,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\r\n",
			"ID",
			"Email",
			"Name",
			"Admin",
			"Verified",
			"Active",
			"LastLogin",
		)
		for _, v := range users {
			lastLogin := ""
			if v.LastLogin != nil {
				lastLogin = v.LastLogin.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(
				w,
				"%d\t%s\t%s %s\t%v\t%v\t%v\t%s \r\n",
				v.ID,
				v.Email,
				v.FirstName,
				v.LastName,
				v.IsAdmin,
				v.IsVerified,
				v.IsActive,
				lastLogin,
			)
		}

		fmt.Fprintf(w, "------------------------------------------------- \r\n")
		fmt.Fprintf(w, "%d entries loaded", total)
		w.Flush()
	},
}
