package pathwatch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// MaxSymlinks bounds the symlinks followed while resolving one path, like
// the kernel does before failing with ELOOP.
const MaxSymlinks = 40

// ErrSymlinkLoop is returned when a path cannot resolve because its
// symlinks form a loop.
var ErrSymlinkLoop = errors.New("pathwatch: symlink loop")

// step is one location visited while resolving a path: dir is symlink free
// and rest is what is still to be traversed from it.
type step struct {
	dir      string
	rest     []string
	symlinks int // followed so far
}

func (s step) key() string {
	return s.dir + "\x00" + strings.Join(s.rest, "/")
}

// splitPath returns the elements of p, dropping empty and "." elements.
// ".." is kept: it can only be interpreted once the symlinks before it are
// known.
func splitPath(p string) []string {
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part != "" && part != "." {
			parts = append(parts, part)
		}
	}
	return parts
}

// resolve walks s.rest from s.dir, following symlinks. visit is called with
// every step before its first element is looked up, so a caller can watch
// the directory even when the element turns out to be missing. It returns
// the symlink free target.
func resolve(s step, visit func(step) error) (string, error) {
	seen := make(map[string]struct{})
	for len(s.rest) > 0 {
		if err := visit(s); err != nil {
			return "", err
		}
		name := s.rest[0]
		if name == ".." {
			s = step{dir: filepath.Dir(s.dir), rest: s.rest[1:], symlinks: s.symlinks}
			continue
		}

		next := filepath.Join(s.dir, name)
		fi, err := os.Lstat(next)
		if err != nil {
			return "", err
		}
		if fi.Mode()&fs.ModeSymlink == 0 {
			s = step{dir: next, rest: s.rest[1:], symlinks: s.symlinks}
			continue
		}

		target, err := os.Readlink(next)
		if err != nil {
			return "", err
		}
		dir := s.dir
		if filepath.IsAbs(target) {
			dir = "/"
		}
		s = step{
			dir:      dir,
			rest:     append(splitPath(target), s.rest[1:]...),
			symlinks: s.symlinks + 1,
		}
		if _, ok := seen[s.key()]; ok || s.symlinks > MaxSymlinks {
			return "", fmt.Errorf("%w at %s", ErrSymlinkLoop, next)
		}
		seen[s.key()] = struct{}{}
	}
	return s.dir, nil
}

// isPathFault reports errors meaning some element of a path is missing or
// unusable right now. A later change of that element is seen as an event.
func isPathFault(err error) bool {
	return errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, syscall.ENOTDIR) ||
		errors.Is(err, syscall.ELOOP)
}
