package discovery

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcb/mcp-context-browser/domain/chunk"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func discoveredPaths(t *testing.T, w *Walker, root string) []string {
	t.Helper()
	files, err := w.Discover(context.Background(), root)
	require.NoError(t, err)
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	sort.Strings(paths)
	return paths
}

func TestWalker_YieldsKnownLanguagesOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "lib/util.py", "def f(): pass")
	writeFile(t, root, "README.md", "# readme")
	writeFile(t, root, "logo.png", "\x89PNG")

	w := NewWalker(NewConfig(), nil)
	assert.Equal(t, []string{"lib/util.py", "main.go"}, discoveredPaths(t, w, root))
}

func TestWalker_DetectsLanguage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "server.rs", "fn main() {}")

	files, err := NewWalker(NewConfig(), nil).Discover(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, chunk.LanguageRust, files[0].Language)
	assert.Equal(t, "server.rs", files[0].Path)
	assert.EqualValues(t, len("fn main() {}"), files[0].Size)
}

func TestWalker_DefaultDenyList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, ".git/hooks/pre-commit.py", "")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}")
	writeFile(t, root, "target/debug/build.rs", "fn main() {}")

	w := NewWalker(NewConfig(), nil)
	assert.Equal(t, []string{"main.go"}, discoveredPaths(t, w, root))
}

func TestWalker_ExclusionPatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.js", "let a")
	writeFile(t, root, "app.min.js", "let a")
	writeFile(t, root, "generated/schema.go", "package schema")
	writeFile(t, root, "src/deep/nested/api.ts", "export {}")

	w := NewWalker(NewConfig().WithExcludes("*.min.js", "generated/", "**/nested/*"), nil)
	assert.Equal(t, []string{"app.js"}, discoveredPaths(t, w, root))
}

func TestWalker_MaxFileSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.go", "package a")
	writeFile(t, root, "big.go", string(make([]byte, 512)))

	w := NewWalker(NewConfig().WithMaxFileSize(100), nil)
	assert.Equal(t, []string{"small.go"}, discoveredPaths(t, w, root))
}

func TestWalker_IncludeUnknown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt", "notes")

	w := NewWalker(NewConfig().WithIncludeUnknown(true), nil)
	files, err := w.Discover(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, chunk.LanguageUnknown, files[0].Language)
}

func TestWalker_SymlinkInsideRootIsFollowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	writeFile(t, root, "real/code.go", "package real")
	require.NoError(t, os.Symlink(filepath.Join(root, "real", "code.go"), filepath.Join(root, "alias.go")))

	w := NewWalker(NewConfig(), nil)
	assert.Equal(t, []string{"alias.go", "real/code.go"}, discoveredPaths(t, w, root))
}

func TestWalker_SymlinkEscapingRootIsSkipped(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	outside := t.TempDir()
	writeFile(t, outside, "secret.go", "package secret")

	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.go"), filepath.Join(root, "leak.go")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "leakdir")))

	w := NewWalker(NewConfig(), nil)
	assert.Equal(t, []string{"main.go"}, discoveredPaths(t, w, root))
}

func TestWalker_SymlinkCycleTerminates(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := t.TempDir()
	writeFile(t, root, "pkg/a.go", "package pkg")
	require.NoError(t, os.Symlink(filepath.Join(root, "pkg"), filepath.Join(root, "pkg", "loop")))

	w := NewWalker(NewConfig(), nil)
	assert.Equal(t, []string{"pkg/a.go"}, discoveredPaths(t, w, root))
}

func TestWalker_MissingRoot(t *testing.T) {
	w := NewWalker(NewConfig(), nil)
	_, err := w.Discover(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		pattern string
		rel     string
		isDir   bool
		want    bool
	}{
		{"*.min.js", "app.min.js", false, true},
		{"*.min.js", "deep/app.min.js", false, true},
		{"generated/", "generated", true, true},
		{"generated/", "generated", false, false},
		{"**/fixtures/*", "a/b/fixtures/x.go", false, true},
		{"docs/*.md", "docs/guide.md", false, true},
		{"docs/*.md", "other/guide.md", false, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, matchPattern(tc.pattern, tc.rel, tc.isDir),
			"pattern %q against %q", tc.pattern, tc.rel)
	}
}
