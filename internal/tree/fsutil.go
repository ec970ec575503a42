// SPDX-License-Identifier: MPL-2.0

package tree

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

// CopyPair describes one file copy from Src to Dst (absolute paths).
type CopyPair struct {
	Src string
	Dst string
}

// Exists reports whether path exists (following symlinks).
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsDir reports whether path exists and is a directory (following symlinks).
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ErrSymlinkCycle is returned when a symbolic link points at a directory
// that contains it.
var ErrSymlinkCycle = errors.New("symbolic link cycle")

// ListFiles returns the slash-separated paths, relative to dir, of every
// regular file below dir, sorted lexically. Symlinks are dereferenced.
func ListFiles(dir string) ([]string, error) {
	var files []string
	err := walkFollow(dir, func(rel string, info fs.FileInfo) error {
		if !info.IsDir() {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// walkFollow calls fn for every entry below dir, descending into symlinked
// directories. rel is slash-separated and relative to dir; info describes
// the link target for symlinks.
func walkFollow(dir string, fn func(rel string, info fs.FileInfo) error) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return err
	}
	return walkLinked(resolved, "", nil, fn)
}

// walkLinked walks the already resolved directory. chain holds the physical
// parents of the links followed to get here; a target enclosing any of
// them would be walked forever.
func walkLinked(resolved, prefix string, chain []string, fn func(string, fs.FileInfo) error) error {
	return filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == resolved {
			return nil
		}
		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}
		rel = joinRel(prefix, filepath.ToSlash(rel))

		if d.Type()&fs.ModeSymlink == 0 {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return fn(rel, info)
		}

		target, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("resolve symlink %s: %w", path, err)
		}
		info, err := os.Stat(target)
		if err != nil {
			return fmt.Errorf("resolve symlink %s: %w", path, err)
		}
		if err := fn(rel, info); err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}

		next := append(slices.Clip(chain), filepath.Dir(path))
		for _, parent := range next {
			if within(parent, target) {
				return fmt.Errorf("%w: %s -> %s", ErrSymlinkCycle, path, target)
			}
		}
		return walkLinked(target, rel, next, fn)
	})
}

func joinRel(prefix, rel string) string {
	if prefix == "" {
		return rel
	}
	return prefix + "/" + rel
}

// within reports whether path is root or lies below it.
func within(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// CopyFile copies the content and permission bits of src to dst, creating
// parent directories and dereferencing symlinks.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck // the copy error wins
		return err
	}
	return out.Close()
}

// CopyAll copies every pair concurrently.
func CopyAll(ctx context.Context, pairs []CopyPair) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0) * 2)
	for _, p := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := CopyFile(p.Src, p.Dst); err != nil {
				return fmt.Errorf("copy %s: %w", p.Src, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// CopyTree copies every file below src into dst, producing a standalone
// directory with all symlinks dereferenced.
func CopyTree(ctx context.Context, src, dst string) error {
	files, err := ListFiles(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	pairs := make([]CopyPair, 0, len(files))
	for _, f := range files {
		pairs = append(pairs, CopyPair{
			Src: filepath.Join(src, filepath.FromSlash(f)),
			Dst: filepath.Join(dst, filepath.FromSlash(f)),
		})
	}
	return CopyAll(ctx, pairs)
}

// ReplaceDir atomically-enough swaps staged into target: the previous
// target is moved aside, staged renamed into place, and the old copy removed.
func ReplaceDir(staged, target string) error {
	old := target + ".old"
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	if err := os.Rename(target, old); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("move previous output aside: %w", err)
	}
	if err := os.Rename(staged, target); err != nil {
		return fmt.Errorf("move staged output into place: %w", err)
	}
	return os.RemoveAll(old)
}
