package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codigos/codigos/internal/api"
)

var companiesCmd = &cobra.Command{
	Use:     "companies",
	Aliases: []string{"company"},
	Short:   "List companies and choose the one requests are scoped to",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var companiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the companies you can work on",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		list, err := app.API.Companies(cmd.Context())
		if err != nil {
			return err
		}
		active := app.Companies.CompanyID()
		return printValue(cmd.OutOrStdout(), list, func() {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\tID\tNAME\tSTATUS")
			for _, c := range list {
				marker := ""
				if c.ID == active {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", marker, c.ID, c.Name, c.Status)
			}
			tw.Flush()
		})
	},
}

var companiesUseCmd = &cobra.Command{
	Use:   "use ID",
	Short: "Scope requests to a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid company id %q", args[0])
		}
		company, err := useCompany(cmd.Context(), app, id)
		if err != nil {
			return err
		}
		return printValue(cmd.OutOrStdout(), company, func() {
			okLabel.Fprintf(cmd.OutOrStdout(), "Using company %s (%d)\n", company.Name, company.ID)
		})
	},
}

var companiesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Stop scoping requests to a company",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := requireApp(cmd)
		if err != nil {
			return err
		}
		if err := app.Companies.SetActiveCompany(cmd.Context(), nil); err != nil {
			return err
		}
		return printValue(cmd.OutOrStdout(), map[string]any{"result": 1}, func() {
			okLabel.Fprintln(cmd.OutOrStdout(), "No company selected")
		})
	},
}

// useCompany selects id after checking the backend lists it for the user.
func useCompany(ctx context.Context, app *App, id int64) (*api.Company, error) {
	list, err := app.API.Companies(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range list {
		if c.ID == id {
			if err := app.Companies.SetCompanyID(ctx, c.ID, c.Name); err != nil {
				return nil, err
			}
			return &c, nil
		}
	}
	return nil, fmt.Errorf("company %d is not available to you", id)
}

func init() {
	companiesCmd.AddCommand(companiesListCmd)
	companiesCmd.AddCommand(companiesUseCmd)
	companiesCmd.AddCommand(companiesClearCmd)
	rootCmd.AddCommand(companiesCmd)
}
