// SPDX-License-Identifier: MPL-2.0

package engine

// DockerAdapter dispatches builds and workloads through the Docker CLI.
// It embeds baseCLIAdapter for the shared build/run argument builders.
type DockerAdapter struct {
	*baseCLIAdapter
}

// NewDockerAdapter creates a Docker adapter.
func NewDockerAdapter() *DockerAdapter {
	return &DockerAdapter{
		baseCLIAdapter: newBaseCLIAdapter(KindDocker, "docker"),
	}
}
