package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blackwell-systems/projectlens/internal/scanner"
	"github.com/blackwell-systems/projectlens/internal/subsystem"
)

// evalFact reports whether every condition set on f holds. The error is a
// contained problem with a JSON document and never aborts the component.
func (a *Analyzer) evalFact(ctx context.Context, root string, f subsystem.Fact, res scanner.Result, texts []string, groups map[string]int) (bool, error) {
	if !res.Exists {
		return false, nil
	}

	if f.Path != "" {
		path := filepath.Join(root, filepath.FromSlash(f.Path))
		if _, err := os.Stat(path); err != nil {
			return false, nil
		}
		if f.JSONPath != "" {
			ok, err := a.jsonFact(ctx, root, f)
			if err != nil || !ok {
				return false, err
			}
		}
	}

	if f.Glob != "" && !anyFileMatches(res.Files, f.Glob) {
		return false, nil
	}

	if len(f.Contains) > 0 && !anyTextContains(texts, f.Contains) {
		return false, nil
	}

	for _, g := range f.Groups {
		if groups[g] == 0 {
			return false, nil
		}
	}
	return true, nil
}

// jsonFact loads the document at f.Path through the scanner and checks that
// the dotted key path resolves to a non-empty value.
func (a *Analyzer) jsonFact(ctx context.Context, root string, f subsystem.Fact) (bool, error) {
	res := scanner.Scan(ctx, root, scanner.Request{Artifacts: []string{f.Path}, MaxBytes: a.opts.MaxFileBytes})
	text, ok := res.Artifacts[0].Text()
	if !ok {
		return false, nil
	}
	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return false, fmt.Errorf("parsing %s: %w", f.Path, err)
	}
	v, found := lookup(doc, f.JSONPath)
	return found && truthy(v), nil
}

// lookup resolves a dotted key path in a decoded JSON document.
func lookup(doc any, path string) (any, bool) {
	cur := doc
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// truthy treats null, false, zero and empty strings, arrays and objects as
// absent.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func anyFileMatches(files []scanner.File, glob string) bool {
	for _, f := range files {
		if scanner.MatchBase(glob, f.Rel) {
			return true
		}
	}
	return false
}

func anyTextContains(texts []string, keywords []string) bool {
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, k := range keywords {
			if k != "" && strings.Contains(lower, strings.ToLower(k)) {
				return true
			}
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
