package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/codigos/codigos/internal/api"
	"github.com/codigos/codigos/internal/session"
)

// newLoginCmd creates and returns a new login command
func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the Codigos backend",
		Long: `Sign in to the Codigos backend. The access token and your profile are kept
between runs until the token is about to expire or you log out.

The password is read without echo from the terminal unless --password is given.

Examples:
  codigos login --email admin@codigos.test
  echo "$PASSWORD" | codigos login --email admin@codigos.test`,
		RunE: runLogin,
	}

	cmd.Flags().String("email", "", "Email to sign in with")
	cmd.Flags().String("password", "", "Password; prompted for when omitted")
	return cmd
}

// runLogin handles the login command execution
func runLogin(cmd *cobra.Command, args []string) error {
	app, err := requireApp(cmd)
	if err != nil {
		return err
	}
	in := bufio.NewReader(cmd.InOrStdin())

	email, _ := cmd.Flags().GetString("email")
	if email == "" {
		cmd.Print("Email: ")
		if email, err = readLine(in); err != nil {
			return fmt.Errorf("unable to read email: %w", err)
		}
	}
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		if password, err = readPassword(cmd, in); err != nil {
			return fmt.Errorf("unable to read password: %w", err)
		}
	}
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	me, err := api.SignIn(cmd.Context(), app.API, app.Session, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	exp, _ := app.Session.ExpiresAt()

	return printValue(cmd.OutOrStdout(), map[string]any{
		"result":     1,
		"user":       me,
		"expires_at": exp.Format(time.RFC3339),
	}, func() {
		okLabel.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", me.DisplayName(), me.Role)
		cmd.Printf("Session ends at %s\n", exp.Add(-app.Session.SafetyMargin()).Local().Format(time.DateTime))
	})
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readPassword reads without echo from a terminal and falls back to a plain
// line otherwise.
func readPassword(cmd *cobra.Command, in *bufio.Reader) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		cmd.Print("Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		cmd.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine(in)
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			if err := api.SignOut(cmd.Context(), app.Session); err != nil {
				return err
			}
			return printValue(cmd.OutOrStdout(), map[string]any{"result": 1}, func() {
				okLabel.Fprintln(cmd.OutOrStdout(), "Logged out")
			})
		},
	}
}

// whoamiReport describes the local session.
type whoamiReport struct {
	State       string            `json:"state"`
	User        *session.Identity `json:"user,omitempty"`
	ExpiresAt   string            `json:"expiresAt,omitempty"`
	CompanyID   int64             `json:"companyId,omitempty"`
	CompanyName string            `json:"companyName,omitempty"`
}

func buildWhoami(app *App) whoamiReport {
	r := whoamiReport{
		State:       app.Session.State().String(),
		User:        app.Session.Identity(),
		CompanyID:   app.Companies.CompanyID(),
		CompanyName: app.Companies.CompanyName(),
	}
	if exp, ok := app.Session.ExpiresAt(); ok {
		r.ExpiresAt = exp.Format(time.RFC3339)
	}
	return r
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			r := buildWhoami(app)
			return printValue(cmd.OutOrStdout(), r, func() {
				printWhoami(cmd.OutOrStdout(), r)
			})
		},
	}
}

func printWhoami(w io.Writer, r whoamiReport) {
	if r.User == nil || r.State != session.Authenticated.String() {
		fmt.Fprintln(w, "Not logged in")
		return
	}
	fmt.Fprintf(w, "User: %s <%s>\n", r.User.DisplayName(), r.User.Email)
	fmt.Fprintf(w, "Role: %s\n", r.User.Role)
	if len(r.User.Permissions) > 0 {
		fmt.Fprintf(w, "Permissions: %s\n", strings.Join(r.User.Permissions, ", "))
	}
	if r.ExpiresAt != "" {
		fmt.Fprintf(w, "Token expires: %s\n", r.ExpiresAt)
	}
	if r.CompanyID > 0 {
		fmt.Fprintf(w, "Company: %s (%d)\n", r.CompanyName, r.CompanyID)
	} else {
		fmt.Fprintln(w, "Company: none selected")
	}
}

func init() {
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newWhoamiCmd())
}
