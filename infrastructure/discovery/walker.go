// Package discovery walks codebase roots and yields the source files worth
// indexing: language detected by extension, exclusions applied, oversized
// files and escaping symlinks skipped.
package discovery

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/mcb/mcp-context-browser/domain/chunk"
	"github.com/mcb/mcp-context-browser/domain/errs"
)

// DefaultMaxFileSize caps the files the walker yields.
const DefaultMaxFileSize = 1 << 20 // 1 MiB

// defaultDenyDirs are directory names skipped regardless of configuration.
var defaultDenyDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	".idea":        {},
	".vscode":      {},
	"node_modules": {},
	"vendor":       {},
	"target":       {},
	"build":        {},
	"dist":         {},
	"out":          {},
	"bin":          {},
	"obj":          {},
	"__pycache__":  {},
	".venv":        {},
	"venv":         {},
}

// DeniedDir reports whether a directory name is on the default deny list.
func DeniedDir(name string) bool {
	_, denied := defaultDenyDirs[name]
	return denied
}

// Config is the immutable walker configuration.
type Config struct {
	excludes       []string
	maxFileSize    int64
	includeUnknown bool
}

// NewConfig creates a Config with defaults.
func NewConfig() Config {
	return Config{maxFileSize: DefaultMaxFileSize}
}

// Excludes returns the configured exclusion patterns.
func (c Config) Excludes() []string {
	out := make([]string, len(c.excludes))
	copy(out, c.excludes)
	return out
}

// MaxFileSize returns the per-file size cap in bytes.
func (c Config) MaxFileSize() int64 { return c.maxFileSize }

// IncludeUnknown reports whether files without a recognized language are
// yielded.
func (c Config) IncludeUnknown() bool { return c.includeUnknown }

// WithExcludes returns a copy with extra git-ignore-style exclusion patterns.
// Patterns match against slash-separated root-relative paths and base names;
// "**" spans path segments and a trailing "/" restricts to directories.
func (c Config) WithExcludes(patterns ...string) Config {
	c.excludes = append(c.Excludes(), patterns...)
	return c
}

// WithMaxFileSize returns a copy with the size cap replaced. Non-positive
// values restore the default.
func (c Config) WithMaxFileSize(limit int64) Config {
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	c.maxFileSize = limit
	return c
}

// WithIncludeUnknown returns a copy that also yields files whose extension
// maps to no grammar.
func (c Config) WithIncludeUnknown(include bool) Config {
	c.includeUnknown = include
	return c
}

// File is one discovered source file. Path is root-relative with forward
// slashes; AbsPath is where the bytes live after symlink resolution.
type File struct {
	Path     string
	AbsPath  string
	Language chunk.Language
	Size     int64
}

// Walker yields the indexable files under a root.
type Walker struct {
	cfg    Config
	logger *slog.Logger
}

// NewWalker creates a Walker.
func NewWalker(cfg Config, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{cfg: cfg, logger: logger}
}

// Walk traverses root and calls fn for every file that passes the filters.
// Returning an error from fn aborts the walk.
func (w *Walker) Walk(ctx context.Context, root string, fn func(File) error) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errs.Wrapf(errs.KindIo, err, "resolving root %q", root)
	}
	resolvedRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return errs.Wrapf(errs.KindIo, err, "resolving root %q", root)
	}
	info, err := os.Stat(resolvedRoot)
	if err != nil {
		return errs.Wrapf(errs.KindIo, err, "stat root %q", root)
	}
	if !info.IsDir() {
		return errs.Newf(errs.KindIo, "root %q is not a directory", root)
	}

	visited := map[string]struct{}{resolvedRoot: {}}
	return w.walkDir(ctx, resolvedRoot, resolvedRoot, "", visited, fn)
}

// Discover collects every file Walk would yield.
func (w *Walker) Discover(ctx context.Context, root string) ([]File, error) {
	var files []File
	err := w.Walk(ctx, root, func(f File) error {
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (w *Walker) walkDir(ctx context.Context, root, dir, rel string, visited map[string]struct{}, fn func(File) error) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.KindTimeout, "walk cancelled", err)
	}
	// Normal recursion only descends through real directories, so dir is
	// already resolved; registering it lets the cycle guard catch symlinks
	// pointing back at an ancestor.
	visited[dir] = struct{}{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errs.Wrapf(errs.KindIo, err, "reading directory %q", dir)
	}
	for _, entry := range entries {
		entryRel := path.Join(rel, entry.Name())
		entryPath := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if w.skipDir(entry.Name(), entryRel) {
				continue
			}
			if err := w.walkDir(ctx, root, entryPath, entryRel, visited, fn); err != nil {
				return err
			}
			continue
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			if err := w.visitSymlink(ctx, root, entryPath, entryRel, visited, fn); err != nil {
				return err
			}
			continue
		}
		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			w.logger.Warn("skipping unreadable entry",
				slog.String("path", entryRel),
				slog.String("error", err.Error()))
			continue
		}
		if err := w.visitFile(entryRel, entryPath, info.Size(), fn); err != nil {
			return err
		}
	}
	return nil
}

// visitSymlink follows a link only when its target stays inside the root.
func (w *Walker) visitSymlink(ctx context.Context, root, linkPath, rel string, visited map[string]struct{}, fn func(File) error) error {
	resolved, err := filepath.EvalSymlinks(linkPath)
	if err != nil {
		w.logger.Warn("skipping broken symlink", slog.String("path", rel))
		return nil
	}
	if !contained(root, resolved) {
		w.logger.Debug("skipping symlink escaping the root", slog.String("path", rel))
		return nil
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		if w.skipDir(filepath.Base(linkPath), rel) {
			return nil
		}
		// Cycle guard: each resolved directory is entered once.
		if _, seen := visited[resolved]; seen {
			return nil
		}
		visited[resolved] = struct{}{}
		return w.walkDir(ctx, root, resolved, rel, visited, fn)
	}
	if !info.Mode().IsRegular() {
		return nil
	}
	return w.visitFile(rel, resolved, info.Size(), fn)
}

func (w *Walker) visitFile(rel, absPath string, size int64, fn func(File) error) error {
	if w.excluded(rel, false) {
		return nil
	}
	if size > w.cfg.maxFileSize {
		w.logger.Debug("skipping oversized file",
			slog.String("path", rel),
			slog.Int64("size", size))
		return nil
	}
	language := chunk.LanguageFromExtension(filepath.Ext(rel))
	if !language.Known() && !w.cfg.includeUnknown {
		return nil
	}
	return fn(File{Path: rel, AbsPath: absPath, Language: language, Size: size})
}

func (w *Walker) skipDir(name, rel string) bool {
	if _, denied := defaultDenyDirs[name]; denied {
		return true
	}
	return w.excluded(rel, true)
}

func (w *Walker) excluded(rel string, isDir bool) bool {
	for _, pattern := range w.cfg.excludes {
		if matchPattern(pattern, rel, isDir) {
			return true
		}
	}
	return false
}

// contained reports whether target sits at or below root. Both paths must be
// symlink-resolved.
func contained(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// matchPattern applies one git-ignore-style pattern to a slash-separated
// relative path. A trailing "/" restricts the pattern to directories; "**"
// matches any number of path segments; patterns without a slash also match
// the base name.
func matchPattern(pattern, rel string, isDir bool) bool {
	if strings.HasSuffix(pattern, "/") {
		if !isDir {
			return false
		}
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if pattern == "" {
		return false
	}
	if !strings.Contains(pattern, "/") {
		if matchSegments(strings.Split(pattern, "/"), []string{path.Base(rel)}) {
			return true
		}
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(rel, "/"))
}

// matchSegments matches pattern segments against path segments, expanding
// "**" over zero or more segments.
func matchSegments(pattern, parts []string) bool {
	if len(pattern) == 0 {
		return len(parts) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(parts); i++ {
			if matchSegments(pattern[1:], parts[i:]) {
				return true
			}
		}
		return false
	}
	if len(parts) == 0 {
		return false
	}
	ok, err := path.Match(pattern[0], parts[0])
	if err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], parts[1:])
}
