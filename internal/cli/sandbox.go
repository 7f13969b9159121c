package cli

import (
	"github.com/spf13/cobra"

	"github.com/harman-health/portalctl/internal/sandbox"
)

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Run a local in-memory portal backend",
	Long: `Start an in-memory rendition of the portal API with seeded synthetic
data, for development and demos.

Seeded accounts:
  admin@harman.health / admin   (ADMIN, all permissions)
  staff@harman.health / staff   (STAFF, limited permissions)

Example:
  portalctl sandbox --port 8000
  PORTAL_API_BASE_URL=http://localhost:8000 portalctl login admin@harman.health`,
	RunE: runSandbox,
}

func init() {
	rootCmd.AddCommand(sandboxCmd)
	sandboxCmd.Flags().String("port", "", "listen port (default from PORTAL_SANDBOX_PORT)")
}

func runSandbox(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetString("port")
	if port == "" {
		port = cfg.SandboxPort
	}

	srv := sandbox.New(sandbox.WithLogger(logger))
	printer.Info("Sandbox listening on :%s", port)
	return srv.Start(":" + port)
}
