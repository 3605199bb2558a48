// Package pattern provides line-level keyword classification of text.
package pattern

import "strings"

// Category is a named set of keywords. Matching is a case-insensitive
// substring test against each line.
type Category struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// lowered returns the category keywords in lower case with empty entries
// removed. An empty keyword would otherwise match every line.
func (c Category) lowered() []string {
	out := make([]string, 0, len(c.Keywords))
	for _, k := range c.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Count returns, for each category, the number of lines in text that contain
// at least one of the category's keywords. A line counts at most once per
// category no matter how many keywords it contains, and may count toward
// several categories. Every category is present in the result, zero if
// nothing matched.
func Count(text string, categories []Category) map[string]int {
	counts := make(map[string]int, len(categories))
	keywords := make([][]string, len(categories))
	for i, c := range categories {
		counts[c.Name] = 0
		keywords[i] = c.lowered()
	}
	if text == "" {
		return counts
	}

	for _, line := range strings.Split(text, "\n") {
		lower := strings.ToLower(line)
		for i, c := range categories {
			if containsAny(lower, keywords[i]) {
				counts[c.Name]++
			}
		}
	}
	return counts
}

// Keywords returns the distinct keywords of the category found anywhere in
// text, in the order they are declared on the category.
func Keywords(text string, c Category) []string {
	lower := strings.ToLower(text)
	var found []string
	seen := make(map[string]bool)
	for _, k := range c.lowered() {
		if seen[k] {
			continue
		}
		seen[k] = true
		if strings.Contains(lower, k) {
			found = append(found, k)
		}
	}
	return found
}

// Lines returns the number of lines in text. Empty text has zero lines and a
// trailing newline does not start a new line.
func Lines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

func containsAny(line string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(line, k) {
			return true
		}
	}
	return false
}
