// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rbberger/bueno/internal/engine"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List container runtimes and their availability",
	Long: `Probe every supported runtime adapter on this host and report whether
it is usable. Runfiles must name an available runtime; bueno never falls
back to a different one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, TitleStyle.Render("Runtime Adapters"))
		fmt.Fprintln(out)

		for _, kind := range engine.Kinds() {
			adapter, err := engine.New(kind)
			if err != nil {
				return err
			}
			status := ErrorStyle.Render("✗ unavailable")
			detail := ""
			if adapter.Available() {
				status = SuccessStyle.Render("✓ available")
				detail = versionOf(cmd.Context(), adapter)
			}
			fmt.Fprintf(out, "  %-14s %s", adapter.Name(), status)
			if detail != "" {
				fmt.Fprintf(out, "  %s", SubtitleStyle.Render(detail))
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

// versionOf asks adapters that expose a version for it; the interface itself
// keeps version reporting optional.
func versionOf(ctx context.Context, adapter engine.Adapter) string {
	v, ok := adapter.(interface {
		Version(context.Context) (string, error)
	})
	if !ok {
		return ""
	}
	version, err := v.Version(ctx)
	if err != nil {
		return ""
	}
	return version
}
