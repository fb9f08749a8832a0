package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Work with backend users",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users, scoped to the selected company",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		if !app.Session.IsAuthenticated() {
			return fmt.Errorf("not logged in")
		}
		users, err := app.API.Users(cmd.Context())
		if err != nil {
			return err
		}
		return printValue(cmd.OutOrStdout(), users, func() {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tSTATUS")
			for _, u := range users {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Nombre, u.Role, u.Status)
			}
			tw.Flush()
		})
	},
}

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Work with the permission catalogue",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var permissionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the permission catalogue, or the grants of one user",
	Long: `List the permission catalogue. With --user, list the permissions granted to
that user instead.

Examples:
  codigos permissions list
  codigos permissions list --user 3 -o yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		userID, _ := cmd.Flags().GetInt64("user")
		if userID > 0 {
			perms, err := app.API.UserPermissions(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), perms, func() {
				if len(perms) == 0 {
					cmd.Println("No permissions granted")
					return
				}
				cmd.Println(strings.Join(perms, "\n"))
			})
		}
		catalogue, err := app.API.Permissions(cmd.Context())
		if err != nil {
			return err
		}
		granted := app.Session.Permissions()
		return printValue(cmd.OutOrStdout(), catalogue, func() {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKEY\tGRANTED")
			for _, p := range catalogue {
				mark := ""
				for _, g := range granted {
					if g == p.Key {
						mark = "yes"
						break
					}
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", p.ID, p.Key, mark)
			}
			tw.Flush()
		})
	},
}

func init() {
	usersCmd.AddCommand(usersListCmd)
	permissionsListCmd.Flags().Int64("user", 0, "List the permissions of this user id")
	permissionsCmd.AddCommand(permissionsListCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(permissionsCmd)
}
