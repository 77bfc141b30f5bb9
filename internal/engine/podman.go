// SPDX-License-Identifier: MPL-2.0

package engine

// PodmanAdapter dispatches builds and workloads through the Podman CLI.
// It embeds baseCLIAdapter for the shared build/run argument builders.
type PodmanAdapter struct {
	*baseCLIAdapter
}

// NewPodmanAdapter creates a Podman adapter. Run arguments gain
// --userns=keep-id so rootless Podman maps the invoking user into the
// container the way rootful Docker effectively does, keeping mounted output
// directories writable.
func NewPodmanAdapter() *PodmanAdapter {
	base := newBaseCLIAdapter(KindPodman, "podman")
	base.runArgsTransformer = injectUserns
	return &PodmanAdapter{baseCLIAdapter: base}
}

// injectUserns inserts --userns=keep-id right after the run verb.
func injectUserns(args []string) []string {
	if len(args) == 0 || args[0] != "run" {
		return args
	}
	out := make([]string, 0, len(args)+1)
	out = append(out, args[0], "--userns=keep-id")
	out = append(out, args[1:]...)
	return out
}
