package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/codigos/codigos/internal/api"
)

// StatusReport combines the backend version with the local session.
type StatusReport struct {
	CLIVersion    string       `json:"version_cli"`
	Server        string       `json:"server"`
	ServerVersion string       `json:"serverVersion,omitempty"`
	ApiVersion    string       `json:"apiVersion,omitempty"`
	Compatible    bool         `json:"compatible"`
	Error         string       `json:"error,omitempty"`
	Session       whoamiReport `json:"session"`
}

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Get server status and session information",
	Long: `Get server status and session information. This command reports the backend
version, whether this CLI can talk to it, and the state of your session.

Examples:
  # Get server status
  codigos status

  # Get server status in JSON format
  codigos status -j`,
	RunE: getStatus,
}

// getStatus handles retrieving server status information
func getStatus(cmd *cobra.Command, args []string) error {
	app, err := requireApp(cmd)
	if err != nil {
		return err
	}
	r := buildStatus(cmd, app)
	if err := printValue(cmd.OutOrStdout(), r, func() {
		printStatusPretty(cmd.OutOrStdout(), r)
	}); err != nil {
		return err
	}
	if r.Error != "" {
		return ErrAlreadyHandled
	}
	return nil
}

func buildStatus(cmd *cobra.Command, app *App) StatusReport {
	r := StatusReport{
		CLIVersion: getCLIVersion(),
		Server:     app.Config.GetServerURL(),
		Session:    buildWhoami(app),
	}
	v, err := app.API.Version(cmd.Context())
	if err != nil {
		r.Error = "Unable to connect to server: " + err.Error()
		return r
	}
	r.ServerVersion = v.ServerVersion
	r.ApiVersion = v.ApiVersion
	if err := api.CheckVersion(v); err != nil {
		r.Error = err.Error()
		return r
	}
	r.Compatible = true
	return r
}

// printStatusPretty prints the status information in a human-readable format
func printStatusPretty(w io.Writer, r StatusReport) {
	fmt.Fprintf(w, "codigos CLI %s\n", r.CLIVersion)
	fmt.Fprintf(w, "Server: %s\n", r.Server)
	if r.ServerVersion != "" {
		fmt.Fprintf(w, "Server Version: %s\n", r.ServerVersion)
		fmt.Fprintf(w, "API Version: %s\n", r.ApiVersion)
	}
	if r.Error != "" {
		errorLabel.Fprintf(w, "Error: %s\n", r.Error)
	}
	fmt.Fprintln(w)
	printWhoami(w, r.Session)
}

// init initializes the status command and adds it to the root command
func init() {
	rootCmd.AddCommand(statusCmd)
}
