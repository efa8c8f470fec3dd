// Package existence checks whether catalogued image paths still resolve to
// files on the local file system.
package existence

import (
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/eunmann/lineup/pkg/logging"
)

// Validator reports whether a path currently names an existing file.
// Any failure to check is treated as "does not exist".
type Validator interface {
	Exists(path string) bool
}

// Func adapts a plain function to the Validator interface.
type Func func(path string) bool

// Exists calls f(path).
func (f Func) Exists(path string) bool {
	return f(path)
}

// OS checks paths against the local file system with a single stat call.
type OS struct {
	log zerolog.Logger
}

// NewOS returns a validator backed by os.Stat.
func NewOS() *OS {
	return &OS{log: logging.WithPhase("existence")}
}

// Exists returns true only for a regular file (symlinks are followed).
func (v *OS) Exists(path string) bool {
	if path == "" {
		return false
	}
	if strings.IndexByte(path, 0) >= 0 {
		v.log.Warn().Str("path", path).Msg("malformed path, treating as missing")
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		v.log.Debug().Str("path", path).Err(err).Msg("file missing")
		return false
	}
	if !info.Mode().IsRegular() {
		v.log.Debug().Str("path", path).Str("mode", info.Mode().String()).Msg("not a regular file")
		return false
	}
	return true
}

// Static answers from a fixed set of existing paths. It is used by tests
// and by callers replaying a recorded file listing.
type Static map[string]bool

// Exists reports whether path is in the set.
func (s Static) Exists(path string) bool {
	return s[path]
}
