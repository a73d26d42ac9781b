package driver

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// ----------------------------------------------------------------------------
// Translation unit discovery + concurrent per-file translation

// DiscoverFiles resolves 'input' to the set of translation units it names: if 'input' is a
// plain file it is returned as-is (regardless of 'ext', so callers can pass a file whose
// extension they already trust); if it's a directory it's walked recursively and every file
// matching 'ext' (e.g. ".vm", ".jack", ".asm") is collected, in the order filepath.Walk visits
// them (lexical per directory level).
func DiscoverFiles(input string, ext string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("error accessing input path '%s': %w", input, err)
	}

	if !info.IsDir() {
		return []string{input}, nil
	}

	var found []string
	err = filepath.Walk(input, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ext {
			return nil // We recurse on dirs and ignore other filetypes
		}
		found = append(found, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory '%s': %w", input, err)
	}

	return found, nil
}

// ParallelEach runs 'fn' once per element of 'inputs' concurrently, one goroutine per file
// (the natural parallelization unit for a translator whose units are independent by
// construction), under a shared context derived from 'ctx'. The first non-nil error returned
// by any 'fn' call cancels that context, so files whose goroutine hasn't started running 'fn'
// yet are skipped rather than started; a file's goroutine that's already running is left to
// finish, since none of the three translators hold long-lived state worth aborting mid-file —
// callers pair this with WriteAtomic so a skipped or failed file never leaves a partial sibling
// output behind. Returns the first non-nil error encountered (including ctx.Err() for skipped
// files, or the caller's own cancellation).
func ParallelEach(ctx context.Context, inputs []string, fn func(ctx context.Context, input string) error) error {
	group, ctx := errgroup.WithContext(ctx)
	for _, input := range inputs {
		input := input
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, input)
		})
	}
	return group.Wait()
}

// WriteAtomic writes the content produced by 'write' into a temp file created alongside 'path'
// and renames it into place only once 'write' returns successfully. A failure (including one
// observed via a canceled context) leaves 'path' untouched rather than holding a truncated or
// half-written file, which matters here since a canceled ParallelEach run may abandon a sibling
// output mid-write.
func WriteAtomic(path string, write func(w io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file for '%s': %w", path, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing content for '%s': %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("error closing temp file for '%s': %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("error renaming temp file into '%s': %w", path, err)
	}
	return nil
}
