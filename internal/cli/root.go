// Package cli contains all portalctl commands.
package cli

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harman-health/portalctl/internal/api"
	"github.com/harman-health/portalctl/internal/authz"
	"github.com/harman-health/portalctl/internal/config"
	"github.com/harman-health/portalctl/internal/output"
	"github.com/harman-health/portalctl/internal/session"
)

var (
	flagBaseURL string
	flagColor   string
	verbose     bool
	version     = "dev"

	cfg       *config.Config
	logger    zerolog.Logger
	printer   *output.Printer
	store     *session.Store
	client    *api.Client
	resources *api.Resources
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "portalctl",
	Short: "Healthcare admin portal CLI",
	Long: `portalctl is a command-line client for the healthcare admin portal API.

It keeps a signed-in session on disk, refreshes expired access tokens
transparently, and exposes every portal resource as a subcommand.

Example usage:
  portalctl login admin@example.com     # Sign in and store the session
  portalctl patients list               # List patients
  portalctl patients get <id>           # Show one patient
  portalctl sandbox                     # Run a local in-memory backend`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command, rendering failures through the printer.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil && printer != nil {
		printer.RenderError(err)
	}
	return err
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
}

func init() {
	// Assigned here rather than in the composite literal: initApp ends up
	// referencing rootCmd through hideDeniedCommands, which would make the
	// literal self-referential.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initApp()
	}

	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "portal API base URL (default from PORTAL_API_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "", "color output: auto, always, never")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// initApp loads config and wires the session store, API client, and
// resource executor shared by every command.
func initApp() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flagBaseURL != "" {
		cfg.APIBaseURL = flagBaseURL
	}
	if flagColor != "" {
		cfg.ColorMode = flagColor
	}

	level, lerr := zerolog.ParseLevel(cfg.LogLevel)
	if lerr != nil {
		level = zerolog.WarnLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	mode, err := output.ParseColorMode(cfg.ColorMode)
	if err != nil {
		return err
	}
	printer = output.NewPrinter(output.ResolveColors(mode))

	store = session.NewStore(cfg.ResolvedSessionFile(), logger)
	store.Load()

	client = api.New(cfg.APIRoot(), store,
		api.WithLogger(logger),
		api.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second}),
	)

	cache, err := api.NewCache(cfg.CacheSize)
	if err != nil {
		return err
	}
	resources = api.NewResources(client, api.NewRegistry(), cache)

	hideDeniedCommands()
	return nil
}

// hideDeniedCommands removes denied resource commands from help output.
// A denial is silent: the affordance is simply not shown. The commands
// still guard themselves on execution, so hiding is cosmetic only.
func hideDeniedCommands() {
	cur := store.Current()
	reg := resources.Registry()
	for _, c := range rootCmd.Commands() {
		res, err := reg.Resource(c.Name())
		if err != nil {
			continue
		}
		c.Hidden = !cur.Authenticated() || !authz.CanAccess(cur.User, res.ReadRequirement())
	}
}

// requireAccess enforces the authorization gate before any request is
// attempted. A signed-out user gets a sign-in hint instead of a denial.
func requireAccess(req authz.Requirement) error {
	cur := store.Current()
	if !cur.Authenticated() {
		return fmt.Errorf("not signed in; run 'portalctl login' first")
	}
	if !authz.CanAccess(cur.User, req) {
		return fmt.Errorf("your account does not have access to this operation")
	}
	return nil
}
