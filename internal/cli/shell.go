package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/codigos/codigos/internal/api"
	"github.com/codigos/codigos/internal/router"
)

const shellHelp = `Commands:
  go PATH                 navigate to a route
  login EMAIL [PASSWORD]  sign in and open the private home
  logout                  end the session and return to the login screen
  company ID              scope requests to a company
  whoami                  show the signed in user
  routes                  list the route table
  help                    show this help
  exit                    leave the shell`

// lockedWriter serialises writes from the prompt loop and from navigations
// triggered by session expiry.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Shell is an interactive loop over the application routes. Every landed
// route is printed as the current view; landing on the login view after an
// expiry prints the expired session banner once.
type Shell struct {
	app *App
	out *lockedWriter
}

// NewShell attaches a shell to app, writing views and results to out.
func NewShell(app *App, out io.Writer) *Shell {
	s := &Shell{app: app, out: &lockedWriter{w: out}}
	app.Router.OnNavigate(s.render)
	return s
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) render(_ context.Context, r *router.Route) {
	s.printf("== %s (%s) ==\n", r.Title, r.URL())
	if r.URL() == s.app.Session.LoginRoute() && s.app.Session.ConsumeSessionExpired() {
		warnLabel.Fprintln(s.out, sessionExpiredBanner)
	}
}

// Run opens the root route and executes commands read from in until exit
// or end of input.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	s.navigate(ctx, router.Root)
	scanner := bufio.NewScanner(in)
	for {
		s.printf("> ")
		if !scanner.Scan() {
			s.printf("\n")
			return scanner.Err()
		}
		if quit := s.Exec(ctx, scanner.Text()); quit {
			return nil
		}
	}
}

// Exec runs one command line and reports whether the shell should exit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "exit", "quit":
		return true
	case "help":
		s.printf("%s\n", shellHelp)
	case "go":
		if len(args) != 1 {
			s.printf("usage: go PATH\n")
			break
		}
		s.navigate(ctx, args[0])
	case "login":
		s.login(ctx, args)
	case "logout":
		if err := api.SignOut(ctx, s.app.Session); err != nil {
			s.printf("Error: %v\n", err)
		}
		s.navigate(ctx, s.app.Session.LoginRoute())
	case "company":
		s.company(ctx, args)
	case "whoami":
		printWhoami(s.out, buildWhoami(s.app))
	case "routes":
		s.routes()
	default:
		s.printf("unknown command %q, try help\n", cmd)
	}
	return false
}

func (s *Shell) navigate(ctx context.Context, path string) {
	err := s.app.Router.Navigate(ctx, path)
	// forced expiry navigates on its own goroutine
	s.app.Session.Settle()
	switch {
	case err == nil:
	case errors.Is(err, router.ErrNavigationDenied):
		s.printf("Access denied: %s\n", path)
	default:
		s.printf("Error: %v\n", err)
	}
}

func (s *Shell) login(ctx context.Context, args []string) {
	if len(args) != 2 {
		s.printf("usage: login EMAIL PASSWORD\n")
		return
	}
	me, err := api.SignIn(ctx, s.app.API, s.app.Session, args[0], args[1])
	s.app.Session.Settle()
	if err != nil {
		s.printf("Login failed: %v\n", err)
		return
	}
	s.printf("Logged in as %s (%s)\n", me.DisplayName(), me.Role)
	s.navigate(ctx, router.PrivateHome)
}

func (s *Shell) company(ctx context.Context, args []string) {
	if len(args) != 1 {
		s.printf("usage: company ID\n")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		s.printf("invalid company id %q\n", args[0])
		return
	}
	c, err := useCompany(ctx, s.app, id)
	s.app.Session.Settle()
	if err != nil {
		s.printf("Error: %v\n", err)
		return
	}
	s.printf("Using company %s (%d)\n", c.Name, c.ID)
}

func (s *Shell) routes() {
	current := s.app.Router.Current()
	for _, r := range s.app.Router.Routes() {
		marker := " "
		if r == current {
			marker = "*"
		}
		if r.RedirectTo != "" {
			s.printf("%s %-18s -> %s\n", marker, r.URL(), r.RedirectTo)
			continue
		}
		s.printf("%s %-18s %s\n", marker, r.URL(), r.Title)
	}
}

func newShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Browse the application routes interactively",
		Long: `Open an interactive shell over the application routes. Guards run exactly as
in the web application: private screens send you to the login view, admin
screens require an admin role and company screens a selected company.

` + shellHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			return NewShell(app, cmd.OutOrStdout()).Run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

func init() {
	rootCmd.AddCommand(newShellCmd())
}
