package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/codigos/codigos/internal/common/logtrace"
)

var (
	// Global flags
	jsonOutput   bool
	outputFormat string
	configFile   string
)

var ErrAlreadyHandled = errors.New("already handled")

// activeApp is closed by Execute once the command returns.
var activeApp *App

var okLabel = color.New(color.FgGreen)
var errorLabel = color.New(color.FgRed)
var warnLabel = color.New(color.FgYellow)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "codigos [command] [flags]",
	Short: "Codigos CLI - sign in to the Codigos backend and work with its resources",
	Long: `Codigos CLI is a command line client for the Codigos reseller backend.
It keeps your session between runs, ends it shortly before the token expires
and scopes requests to the company you select.

Examples:
  # Point the CLI at a backend
  codigos config set-server http://localhost:8790

  # Sign in
  codigos login --email admin@codigos.test

  # Pick a company and list its users
  codigos companies use 1
  codigos users list -o yaml

  # Browse the application routes interactively
  codigos shell`,
	PersistentPreRunE: preRunHandlePersistents,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Set up persistent flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "", "Output format: text, json or yaml")

	// Add commands
	rootCmd.AddCommand(newVersionCmd())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	err := rootCmd.ExecuteContext(context.Background())
	if activeApp != nil {
		activeApp.Close()
	}
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if isStructuredOutput() {
			printJSON(os.Stdout, map[string]string{
				"error": err.Error(),
			})
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// needsApp reports whether cmd talks to the backend or the session. The bare
// root command only prints help.
func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "config", "version", "help", "completion":
			return false
		}
	}
	return cmd.HasParent()
}

// preRunHandlePersistents resolves the config file and, for commands that
// need it, builds the application and restores the saved session.
func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	if err := resolveOutputFormat(); err != nil {
		return err
	}
	if configFile == "" {
		var err error
		configFile, err = GetDefaultConfigPath()
		if err != nil {
			return err
		}
	}
	if !needsApp(cmd) {
		logtrace.Configure(os.Stderr, logtrace.FormatConsole, DefaultLogLevel)
		return nil
	}

	cfg, err := LoadConfig(configFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			errorLabel.Fprintln(os.Stderr, "Codigos config file not found. Configure the CLI with \"codigos config set-server <url>\" first.")
			return ErrAlreadyHandled
		}
		return err
	}
	logtrace.Configure(os.Stderr, logtrace.FormatConsole, cfg.LogLevel)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	if app.ConsumeExpiredNotice() {
		warnLabel.Fprintln(os.Stderr, sessionExpiredBanner)
	}
	activeApp = app
	cmd.SetContext(withApp(ctx, app))
	return nil
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of the codigos CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printValue(cmd.OutOrStdout(), map[string]string{
				"version":     getCLIVersion(),
				"config_file": configFile,
			}, func() {
				cmd.Printf("codigos CLI %s\n", getCLIVersion())
				cmd.Printf("Config file: %s\n", configFile)
			})
		},
	}
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0-alpha.1"
}

func requireApp(cmd *cobra.Command) (*App, error) {
	app := appFromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("no configuration loaded")
	}
	return app, nil
}
