// SPDX-License-Identifier: MPL-2.0

package experiment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrNoFreeID is returned when the %i token cannot resolve to an unused
// directory within a sane number of attempts.
var ErrNoFreeID = errors.New("no free experiment id")

// maxIDProbes bounds the search for a free %i value.
const maxIDProbes = 100000

// idPlaceholder stands in for %i until the other tokens are substituted.
const idPlaceholder = "\x00i\x00"

// ExpandOutputPath resolves the tokens of an output path template:
//
//	%n  experiment name
//	%u  user name
//	%h  hostname
//	%d  date as YYYY-MM-DD
//	%t  time as HH-MM-SS
//	%i  first integer, starting at 0, for which the resulting path
//	    does not yet exist
//	%%  literal percent sign
//
// %i is resolved last, against the path with all other tokens already
// substituted, so "results/%n/%i" yields results/<name>/0 on the first run
// and results/<name>/1 on the next. The id-bearing directory is created as
// part of resolution; the create is the reservation, so two concurrent runs
// cannot resolve to the same id.
func ExpandOutputPath(template, name string, now time.Time) (string, error) {
	if template == "" {
		return "", errors.New("output path template is empty")
	}

	var b strings.Builder
	hasID := false
	for i := 0; i < len(template); i++ {
		if template[i] != '%' {
			b.WriteByte(template[i])
			continue
		}
		if i == len(template)-1 {
			return "", fmt.Errorf("dangling %% at end of output path template %q", template)
		}
		i++
		switch template[i] {
		case 'n':
			b.WriteString(name)
		case 'u':
			b.WriteString(currentUser())
		case 'h':
			b.WriteString(currentHostname())
		case 'd':
			b.WriteString(now.Format("2006-01-02"))
		case 't':
			b.WriteString(now.Format("15-04-05"))
		case 'i':
			// Placeholder; resolved below once the rest is fixed.
			b.WriteString(idPlaceholder)
			hasID = true
		case '%':
			b.WriteByte('%')
		default:
			return "", fmt.Errorf("unknown token %%%c in output path template %q", template[i], template)
		}
	}

	path := b.String()
	if !hasID {
		return path, nil
	}
	return resolveFirstFreeID(path)
}

// resolveFirstFreeID substitutes the smallest id that names a path which
// does not exist yet, claiming it with Mkdir so the resolution is atomic:
// a Stat-then-use probe would let two concurrent runs pick the same id.
func resolveFirstFreeID(path string) (string, error) {
	// The claim covers the path up to the end of the component carrying the
	// last id, so templates like "out/%i/logs" reserve "out/<id>".
	claimEnd := len(path)
	if i := strings.LastIndex(path, idPlaceholder); i >= 0 {
		if j := strings.IndexByte(path[i:], os.PathSeparator); j >= 0 {
			claimEnd = i + j
		}
	}

	for id := 0; id < maxIDProbes; id++ {
		resolved := strings.ReplaceAll(path, idPlaceholder, strconv.Itoa(id))
		claim := strings.ReplaceAll(path[:claimEnd], idPlaceholder, strconv.Itoa(id))
		if parent := filepath.Dir(claim); parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return "", fmt.Errorf("create output directory: %w", err)
			}
		}
		err := os.Mkdir(claim, 0o755)
		switch {
		case err == nil:
			return resolved, nil
		case errors.Is(err, fs.ErrExist):
			continue
		default:
			return "", fmt.Errorf("create output directory: %w", err)
		}
	}
	return "", ErrNoFreeID
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "unknown"
}

func currentHostname() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "unknown"
}
