// Package snapshot persists and rebuilds filesystem snapshots used by the
// incremental sync coordinator.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mcb/mcp-context-browser/domain/errs"
	"github.com/mcb/mcp-context-browser/domain/snapshot"
	"github.com/mcb/mcp-context-browser/infrastructure/discovery"
)

const (
	// hashBufferSize is the read granularity while hashing.
	hashBufferSize = 8 * 1024
	// hashConcurrency bounds parallel file hashing.
	hashConcurrency = 8
)

// Builder walks a root with the discovery rules and hashes every yielded
// file into a Snapshot.
type Builder struct {
	walker *discovery.Walker
	now    func() time.Time
}

// NewBuilder creates a Builder over the given walker.
func NewBuilder(walker *discovery.Walker) *Builder {
	return &Builder{walker: walker, now: time.Now}
}

// Build produces a snapshot of root. Files are hashed concurrently; files
// that disappear mid-walk are skipped rather than failing the build.
func (b *Builder) Build(ctx context.Context, root string) (snapshot.Snapshot, error) {
	var files []discovery.File
	err := b.walker.Walk(ctx, root, func(f discovery.File) error {
		files = append(files, f)
		return nil
	})
	if err != nil {
		return snapshot.Snapshot{}, errs.Wrapf(errs.KindIo, err, "building snapshot of %q", root)
	}

	snap := snapshot.New(root, b.now())
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(hashConcurrency)
	for _, f := range files {
		group.Go(func() error {
			info, err := os.Stat(f.AbsPath)
			if err != nil {
				return nil
			}
			hash, err := hashFile(f.AbsPath)
			if err != nil {
				return nil
			}
			mu.Lock()
			snap.Add(f.Path, snapshot.FileSnapshot{
				Hash:      hash,
				Size:      info.Size(),
				Modified:  info.ModTime().UTC(),
				Extension: filepath.Ext(f.Path),
			})
			mu.Unlock()
			return groupCtx.Err()
		})
	}
	if err := group.Wait(); err != nil {
		return snapshot.Snapshot{}, errs.Wrapf(errs.KindIo, err, "building snapshot of %q", root)
	}
	return snap, nil
}

// hashFile computes the file's SHA-256 in fixed-size reads.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashBufferSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
