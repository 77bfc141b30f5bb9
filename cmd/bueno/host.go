// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rbberger/bueno/internal/sysprobe"
)

var (
	// hostFacts limits the output to specific facts.
	hostFacts []string

	hostCmd = &cobra.Command{
		Use:   "host",
		Short: "Show this host's system fingerprint",
		Long: `Sample and print the system fingerprint that would be attached to
provenance records on this host. Facts that cannot be resolved are shown
with the "unavailable" sentinel rather than omitted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prober := sysprobe.NewProber()
			fp := prober.Capture(cmd.Context(), hostFacts...)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render("System Fingerprint"))
			fmt.Fprintln(out, SubtitleStyle.Render("sampled "+fp.SampledAt.Format("2006-01-02 15:04:05 MST")))
			fmt.Fprintln(out)

			for _, name := range sortedFactNames(fp.Facts) {
				value := fp.Facts[name]
				style := ValueStyle
				if value == sysprobe.Unavailable {
					style = WarningStyle
				}
				fmt.Fprintf(out, "  %-16s %s\n", name, style.Render(value))
			}
			return nil
		},
	}
)

func init() {
	hostCmd.Flags().StringSliceVar(&hostFacts, "facts", nil, "limit output to the named facts")
}

func sortedFactNames(facts map[string]string) []string {
	names := make([]string, 0, len(facts))
	for name := range facts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
