// SPDX-License-Identifier: MPL-2.0

package runfile

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/rbberger/bueno/pkg/cueutil"
)

//go:embed runfile_schema.cue
var runfileSchema []byte

// Parse reads and parses a runfile from the given path.
func Parse(path string) (*Runfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read runfile at %s: %w", path, err)
	}
	return ParseBytes(data, path)
}

// ParseBytes parses runfile content: unify with the embedded schema, decode,
// then apply the Go-side validation.
func ParseBytes(data []byte, path string) (*Runfile, error) {
	result, err := cueutil.ParseAndDecode[Runfile](
		runfileSchema,
		data,
		"#Runfile",
		cueutil.WithFilename(path),
	)
	if err != nil {
		return nil, err
	}

	rf := result.Value
	rf.FilePath = path

	if err := rf.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rf, nil
}
