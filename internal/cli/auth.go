package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and store the session",
	Long: `Authenticate against the portal and persist the session locally.

The password is read from the --password flag or, when omitted, from
standard input.

Examples:
  portalctl login admin@example.com --password secret
  echo secret | portalctl login admin@example.com`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client.Logout()
		printer.Success("Signed out.")
		return nil
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the signed-in user",
	RunE:  runMe,
}

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create a portal account",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(meCmd)
	rootCmd.AddCommand(registerCmd)

	loginCmd.Flags().String("password", "", "account password (read from stdin when omitted)")
	registerCmd.Flags().String("password", "", "account password (read from stdin when omitted)")
	registerCmd.Flags().String("name", "", "display name")
}

func readPassword(cmd *cobra.Command) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	if password != "" {
		return password, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}

	user, err := client.Login(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}

	name, _ := user["name"].(string)
	if name == "" {
		name = args[0]
	}
	printer.Success("Signed in as %s.", name)
	return nil
}

func runMe(cmd *cobra.Command, args []string) error {
	if !store.Current().Authenticated() {
		return fmt.Errorf("not signed in; run 'portalctl login' first")
	}
	user, err := client.Me(cmd.Context())
	if err != nil {
		return err
	}
	printer.RenderDetail(user)
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	name, _ := cmd.Flags().GetString("name")

	body := map[string]any{
		"email":    args[0],
		"password": password,
	}
	if name != "" {
		body["name"] = name
	}

	user, err := client.Register(cmd.Context(), body)
	if err != nil {
		return err
	}
	printer.Success("Account created.")
	printer.RenderDetail(user)
	return nil
}
