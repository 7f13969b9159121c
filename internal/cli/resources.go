package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harman-health/portalctl/internal/api"
)

func init() {
	for _, kind := range api.NewRegistry().Kinds() {
		rootCmd.AddCommand(resourceCommand(kind))
	}
}

// resourceCommand builds the subcommand tree for one resource kind. The
// commands are identical across kinds; the registry supplies the paths,
// cache tags, and sub-actions.
func resourceCommand(kind string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind,
		Short: fmt.Sprintf("Manage %s", strings.ReplaceAll(kind, "-", " ")),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resources.Registry().Resource(kind)
			if err != nil {
				return err
			}
			if err := requireAccess(res.ReadRequirement()); err != nil {
				return err
			}

			filters, _ := cmd.Flags().GetStringArray("filter")
			params, err := parseFilters(filters)
			if err != nil {
				return err
			}

			items, err := resources.List(cmd.Context(), kind, params)
			if err != nil {
				return err
			}
			printer.RenderList(items, nil)
			return nil
		},
	}
	list.Flags().StringArray("filter", nil, "filter as key=value (repeatable)")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: fmt.Sprintf("Show one of %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resources.Registry().Resource(kind)
			if err != nil {
				return err
			}
			if err := requireAccess(res.ReadRequirement()); err != nil {
				return err
			}

			item, err := resources.Get(cmd.Context(), kind, args[0])
			if err != nil {
				return err
			}
			printer.RenderDetail(item)
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create",
		Short: fmt.Sprintf("Create one of %s", kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resources.Registry().Resource(kind)
			if err != nil {
				return err
			}
			if err := requireAccess(res.WriteRequirement()); err != nil {
				return err
			}

			body, err := bodyFromFlags(cmd, args)
			if err != nil {
				return err
			}

			item, err := resources.Create(cmd.Context(), kind, body)
			if err != nil {
				return err
			}
			printer.Success("Created.")
			printer.RenderDetail(item)
			return nil
		},
	}
	create.Flags().String("data", "", "request body as a JSON object")

	update := &cobra.Command{
		Use:   "update <id>",
		Short: fmt.Sprintf("Update one of %s", kind),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resources.Registry().Resource(kind)
			if err != nil {
				return err
			}
			if err := requireAccess(res.WriteRequirement()); err != nil {
				return err
			}

			body, err := bodyFromFlags(cmd, args[1:])
			if err != nil {
				return err
			}

			item, err := resources.Update(cmd.Context(), kind, args[0], body)
			if err != nil {
				return err
			}
			printer.Success("Updated.")
			printer.RenderDetail(item)
			return nil
		},
	}
	update.Flags().String("data", "", "request body as a JSON object")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: fmt.Sprintf("Delete one of %s", kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resources.Registry().Resource(kind)
			if err != nil {
				return err
			}
			if err := requireAccess(res.WriteRequirement()); err != nil {
				return err
			}

			if err := resources.Delete(cmd.Context(), kind, args[0]); err != nil {
				return err
			}
			printer.Success("Deleted.")
			return nil
		},
	}

	cmd.AddCommand(list, get, create, update, del)

	res, err := api.NewRegistry().Resource(kind)
	if err == nil {
		for name := range res.Actions {
			cmd.AddCommand(actionCommand(kind, name))
		}
	}
	return cmd
}

// actionCommand exposes a registry sub-action. Positional arguments feed
// the action's path builder; --data supplies an optional JSON body.
func actionCommand(kind, name string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name + " [id...]",
		Short: fmt.Sprintf("Run the %s action", name),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := resources.Registry().Resource(kind)
			if err != nil {
				return err
			}

			req := res.WriteRequirement()
			if action, ok := res.Actions[name]; ok && action.Method == http.MethodGet {
				req = res.ReadRequirement()
			}
			if err := requireAccess(req); err != nil {
				return err
			}

			body, err := bodyFromFlags(cmd, nil)
			if err != nil {
				return err
			}

			resp, err := resources.Action(cmd.Context(), kind, name, args, nil, body)
			if err != nil {
				return err
			}

			var item map[string]any
			if derr := resp.Decode(&item); derr == nil && item != nil {
				printer.RenderDetail(item)
				return nil
			}
			items := api.NormalizeList(resp.Body)
			printer.RenderList(items, nil)
			return nil
		},
	}
	cmd.Flags().String("data", "", "request body as a JSON object")
	return cmd
}

// bodyFromFlags builds a request body from the --data JSON flag merged
// with any trailing key=value arguments. Returns nil when both are empty.
func bodyFromFlags(cmd *cobra.Command, kvArgs []string) (any, error) {
	body := map[string]any{}

	if data, _ := cmd.Flags().GetString("data"); data != "" {
		if err := json.Unmarshal([]byte(data), &body); err != nil {
			return nil, fmt.Errorf("invalid --data JSON: %w", err)
		}
	}

	for _, arg := range kvArgs {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		body[key] = value
	}

	if len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

func parseFilters(filters []string) (url.Values, error) {
	if len(filters) == 0 {
		return nil, nil
	}
	params := url.Values{}
	for _, f := range filters {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", f)
		}
		params.Add(key, value)
	}
	return params, nil
}
