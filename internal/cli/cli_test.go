package cli

import (
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harman-health/portalctl/internal/api"
	"github.com/harman-health/portalctl/internal/sandbox"
)

// setupCLITest points the CLI at a throwaway sandbox backend and a
// fresh session file via the environment, the same path production
// config takes.
func setupCLITest(t *testing.T) {
	t.Helper()

	srv := sandbox.New()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	t.Setenv("PORTAL_API_BASE_URL", ts.URL)
	t.Setenv("PORTAL_SESSION_FILE", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("PORTAL_COLOR", "never")

	flagBaseURL = ""
	flagColor = ""
	verbose = false
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestRootCommandWiresAppInit(t *testing.T) {
	if rootCmd.PersistentPreRunE == nil {
		t.Fatal("root command must initialize config and session before any subcommand runs")
	}
}

func TestCommandTreeCoversAllKinds(t *testing.T) {
	kinds := api.NewRegistry().Kinds()
	byUse := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		byUse[c.Name()] = true
	}

	for _, kind := range kinds {
		if !byUse[kind] {
			t.Errorf("missing command for resource kind %q", kind)
		}
	}
}

func TestResourceCommandHasCRUDSubcommands(t *testing.T) {
	cmd := resourceCommand("patients")
	want := map[string]bool{
		"list": false, "get": false, "create": false,
		"update": false, "delete": false,
		"search": false, "merge": false, "export": false,
	}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("patients command missing %q subcommand", name)
		}
	}
}

func TestLoginThenList(t *testing.T) {
	setupCLITest(t)

	if err := runCLI(t, "login", "admin@harman.health", "--password", "admin"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := runCLI(t, "patients", "list"); err != nil {
		t.Fatalf("patients list failed: %v", err)
	}
	if err := runCLI(t, "me"); err != nil {
		t.Fatalf("me failed: %v", err)
	}
}

func TestListRequiresSession(t *testing.T) {
	setupCLITest(t)

	err := runCLI(t, "patients", "list")
	if err == nil {
		t.Fatal("expected signed-out error")
	}
	if !strings.Contains(err.Error(), "not signed in") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGateDeniesUnpermittedWrite(t *testing.T) {
	setupCLITest(t)

	if err := runCLI(t, "login", "staff@harman.health", "--password", "staff"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// Staff can read patients but not write them.
	err := runCLI(t, "patients", "create", "--data", `{"name":"X"}`)
	if err == nil {
		t.Fatal("expected authorization denial")
	}
	if !strings.Contains(err.Error(), "does not have access") {
		t.Errorf("unexpected error: %v", err)
	}

	if err := runCLI(t, "patients", "list"); err != nil {
		t.Errorf("staff should be able to list patients: %v", err)
	}
}

func TestDeniedCommandsAreHidden(t *testing.T) {
	setupCLITest(t)

	if err := runCLI(t, "login", "staff@harman.health", "--password", "staff"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	// Trigger another init so hiding reflects the signed-in session.
	if err := runCLI(t, "patients", "list"); err != nil {
		t.Fatalf("patients list failed: %v", err)
	}

	hidden := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		hidden[c.Name()] = c.Hidden
	}
	if hidden["patients"] {
		t.Error("patients command should be visible to staff")
	}
	if !hidden["users"] {
		t.Error("users command should be hidden from staff")
	}
}

func TestLogoutClearsSession(t *testing.T) {
	setupCLITest(t)

	if err := runCLI(t, "login", "admin@harman.health", "--password", "admin"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if err := runCLI(t, "logout"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if err := runCLI(t, "patients", "list"); err == nil {
		t.Error("expected signed-out error after logout")
	}
}

func TestBodyFromFlagsMergesDataAndArgs(t *testing.T) {
	cmd := resourceCommand("patients")
	create, _, err := cmd.Find([]string{"create"})
	if err != nil {
		t.Fatalf("find create: %v", err)
	}
	if err := create.Flags().Set("data", `{"name":"Ada","status":"active"}`); err != nil {
		t.Fatalf("set data: %v", err)
	}

	body, err := bodyFromFlags(create, []string{"mrn=MRN-9"})
	if err != nil {
		t.Fatalf("bodyFromFlags: %v", err)
	}
	m := body.(map[string]any)
	if m["name"] != "Ada" || m["mrn"] != "MRN-9" {
		t.Errorf("body = %v", m)
	}
}

func TestParseFilters(t *testing.T) {
	params, err := parseFilters([]string{"status=active", "name=Ada"})
	if err != nil {
		t.Fatalf("parseFilters: %v", err)
	}
	if params.Get("status") != "active" || params.Get("name") != "Ada" {
		t.Errorf("params = %v", params)
	}

	if _, err := parseFilters([]string{"nonsense"}); err == nil {
		t.Error("expected error for malformed filter")
	}
}
