// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#Thing: {
	name!:  string & !=""
	count?: int & >=0
}
`

type thing struct {
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		opts    []Option
		want    thing
		wantErr string
	}{
		{
			name: "valid input decodes",
			data: `name: "probe"` + "\ncount: 3\n",
			want: thing{Name: "probe", Count: 3},
		},
		{
			name: "optional field may stay unset",
			data: `name: "probe"`,
			want: thing{Name: "probe"},
		},
		{
			name:    "constraint violation reports json path",
			data:    `name: "probe"` + "\ncount: -1\n",
			wantErr: "count",
		},
		{
			name:    "missing required field",
			data:    `count: 1`,
			wantErr: "name",
		},
		{
			name:    "oversized input rejected",
			data:    `name: "` + strings.Repeat("x", 64) + `"`,
			opts:    []Option{WithMaxFileSize(16)},
			wantErr: "exceeds maximum",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := ParseAndDecode[thing]([]byte(testSchema), []byte(tt.data), "#Thing", tt.opts...)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("ParseAndDecode() error = nil, want containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAndDecode() error = %v", err)
			}
			if *res.Value != tt.want {
				t.Errorf("decoded = %+v, want %+v", *res.Value, tt.want)
			}
		})
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   []string
		want string
	}{
		{nil, ""},
		{[]string{"name"}, "name"},
		{[]string{"activities", "0", "exec"}, "activities[0].exec"},
		{[]string{"runtime", "kind"}, "runtime.kind"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.in); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
