package scanner

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// defaultIgnores are skipped in every walk in addition to .gitignore rules.
var defaultIgnores = []string{
	".git/",
	"node_modules/",
	"vendor/",
	".build/",
	"DerivedData/",
	".DS_Store",
}

// WalkOptions controls Walk.
type WalkOptions struct {
	// Ignore holds extra gitignore-style patterns.
	Ignore []string
}

// Walk lists the regular files below root, honouring the default ignores,
// the root's .gitignore and opts.Ignore. A missing root yields no files and
// no error. Unreadable subdirectories are skipped.
func Walk(root string, opts WalkOptions) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, &fs.PathError{Op: "walk", Path: root, Err: errors.New("not a directory")}
	}

	matcher := compileIgnores(root, opts.Ignore)

	var files []File
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			// Skip the unreadable entry and keep walking its siblings.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if matcher.MatchesPath(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher.MatchesPath(rel) {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		var size int64
		if fi, err := d.Info(); err == nil {
			size = fi.Size()
		}
		files = append(files, File{Rel: rel, Size: size})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Rel < files[j].Rel })
	return files, nil
}

// compileIgnores merges the default ignores, the root .gitignore and extra
// patterns into one matcher.
func compileIgnores(root string, extra []string) *ignore.GitIgnore {
	lines := append([]string{}, defaultIgnores...)
	if data, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
		lines = append(lines, strings.Split(string(data), "\n")...)
	}
	lines = append(lines, extra...)
	return ignore.CompileIgnoreLines(lines...)
}

// HasExtension reports whether name ends in one of exts, case-insensitively.
func HasExtension(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// MatchBase reports whether the base name of rel matches the glob pattern,
// case-insensitively. Invalid patterns never match.
func MatchBase(pattern, rel string) bool {
	ok, err := filepath.Match(strings.ToLower(pattern), strings.ToLower(pathBase(rel)))
	return err == nil && ok
}

func pathBase(rel string) string {
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		return rel[i+1:]
	}
	return rel
}
