package output

import (
	"errors"
	"fmt"

	"github.com/fatih/color"

	"github.com/harman-health/portalctl/internal/api"
)

// RenderError writes a failure as one human-readable summary line plus,
// for structured validation bodies, a per-field detail list.
func (p *Printer) RenderError(err error) {
	if err == nil {
		return
	}

	summary := err.Error()
	var details []string
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		summary = apiErr.Summary()
		details = apiErr.FieldDetails()
	}

	if p.useColors {
		summary = color.New(color.FgRed, color.Bold).Sprint(summary)
	}
	fmt.Fprintln(p.err, summary)
	for _, d := range details {
		fmt.Fprintf(p.err, "  - %s\n", d)
	}
}
