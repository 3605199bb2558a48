package scanner

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Scan loads the requested artifacts of one subsystem rooted at root.
//
// Scan never fails as a whole: a missing artifact is reported as
// StatusMissing and a read failure as StatusError with the message kept,
// and the remaining artifacts are still read. A cancelled context marks the
// artifacts not yet read as StatusError.
func Scan(ctx context.Context, root string, req Request) Result {
	res := Result{Root: root}
	if info, err := os.Stat(root); err == nil && info.IsDir() {
		res.Exists = true
	}

	maxBytes := req.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	for _, name := range req.Artifacts {
		res.Artifacts = append(res.Artifacts, load(ctx, root, filepath.ToSlash(name), maxBytes))
	}

	if !res.Exists || (!req.Walk && len(req.Extensions) == 0) {
		return res
	}

	files, err := Walk(root, WalkOptions{Ignore: req.Ignore})
	if err != nil {
		res.WalkError = err.Error()
	}
	res.Files = files

	if len(req.Extensions) == 0 {
		return res
	}

	known := make(map[string]bool, len(req.Artifacts))
	for _, name := range req.Artifacts {
		known[filepath.ToSlash(name)] = true
	}
	for _, f := range files {
		if known[f.Rel] || !HasExtension(f.Rel, req.Extensions) {
			continue
		}
		res.Artifacts = append(res.Artifacts, load(ctx, root, f.Rel, maxBytes))
	}
	return res
}

// load reads a single artifact, capping the read at maxBytes.
func load(ctx context.Context, root, rel string, maxBytes int64) Artifact {
	a := Artifact{Name: rel}
	if err := ctx.Err(); err != nil {
		a.Status = StatusError
		a.Error = err.Error()
		return a
	}

	path := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			a.Status = StatusMissing
			return a
		}
		a.Status = StatusError
		a.Error = err.Error()
		return a
	}
	if info.IsDir() {
		a.Status = StatusError
		a.Error = "is a directory"
		return a
	}
	a.Size = info.Size()

	f, err := os.Open(path)
	if err != nil {
		a.Status = StatusError
		a.Error = err.Error()
		return a
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		a.Status = StatusError
		a.Error = err.Error()
		return a
	}
	if int64(len(data)) > maxBytes {
		data = data[:maxBytes]
		a.Truncated = true
	}

	a.Status = StatusPresent
	a.Content = string(data)
	return a
}
