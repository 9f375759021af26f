// Package hostlist expands compressed host range expressions such as
// "cpu-[1-3,7]-[01-02]" or "10.101.1.[1-60]" into individual host names.
//
// Bracketed ranges are expanded left to right, so the rightmost range varies
// fastest. Zero padding of the lower bound is preserved. Commas outside brackets
// separate independent expressions. Duplicates are dropped across all patterns
// given to one Expand call, keeping the first occurrence. Slurm style hostlist
// tools de-duplicate within a single expression only, so a host listed under two
// nodelist entries is swept once here rather than twice.
package hostlist

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxHosts caps the size of one expansion.
const MaxHosts = 100000

// Expand expands every pattern and concatenates the results in order.
func Expand(patterns ...string) ([]string, error) {
	seen := make(map[string]struct{})
	var hosts []string
	for _, pattern := range patterns {
		for _, expr := range splitTopLevel(pattern) {
			expr = strings.TrimSpace(expr)
			if expr == "" {
				continue
			}
			expanded, err := expandOne(expr)
			if err != nil {
				return nil, fmt.Errorf("expand %q: %w", pattern, err)
			}
			for _, h := range expanded {
				if _, dup := seen[h]; dup {
					continue
				}
				seen[h] = struct{}{}
				hosts = append(hosts, h)
				if len(hosts) > MaxHosts {
					return nil, fmt.Errorf("expand %q: more than %d hosts", pattern, MaxHosts)
				}
			}
		}
	}
	return hosts, nil
}

// splitTopLevel splits on commas that are not inside brackets.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func expandOne(expr string) ([]string, error) {
	open := strings.IndexByte(expr, '[')
	if open < 0 {
		if strings.ContainsRune(expr, ']') {
			return nil, fmt.Errorf("unbalanced ']'")
		}
		return []string{expr}, nil
	}
	if strings.ContainsRune(expr[:open], ']') {
		return nil, fmt.Errorf("unbalanced ']'")
	}
	closeIdx := strings.IndexByte(expr[open:], ']')
	if closeIdx < 0 {
		return nil, fmt.Errorf("unbalanced '['")
	}
	closeIdx += open
	if strings.ContainsRune(expr[open+1:closeIdx], '[') {
		return nil, fmt.Errorf("nested '['")
	}

	prefix := expr[:open]
	values, err := expandRangeList(expr[open+1 : closeIdx])
	if err != nil {
		return nil, err
	}
	suffixes, err := expandOne(expr[closeIdx+1:])
	if err != nil {
		return nil, err
	}
	if len(values)*len(suffixes) > MaxHosts {
		return nil, fmt.Errorf("more than %d hosts", MaxHosts)
	}

	out := make([]string, 0, len(values)*len(suffixes))
	for _, v := range values {
		for _, s := range suffixes {
			out = append(out, prefix+v+s)
		}
	}
	return out, nil
}

// expandRangeList expands "1-3,07,10-12" into its members.
func expandRangeList(list string) ([]string, error) {
	if strings.TrimSpace(list) == "" {
		return nil, fmt.Errorf("empty range")
	}
	var out []string
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		lo, hi, found := strings.Cut(item, "-")
		if !found {
			if !isDigits(item) {
				return nil, fmt.Errorf("invalid range item %q", item)
			}
			out = append(out, item)
			continue
		}
		if !isDigits(lo) || !isDigits(hi) {
			return nil, fmt.Errorf("invalid range item %q", item)
		}
		start, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q: %w", lo, err)
		}
		end, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q: %w", hi, err)
		}
		if end < start {
			return nil, fmt.Errorf("reversed range %q", item)
		}
		if end-start >= MaxHosts {
			return nil, fmt.Errorf("range %q exceeds %d hosts", item, MaxHosts)
		}
		width := 0
		if len(lo) > 1 && lo[0] == '0' {
			width = len(lo)
		}
		for n := start; n <= end; n++ {
			out = append(out, fmt.Sprintf("%0*d", width, n))
		}
	}
	return out, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
