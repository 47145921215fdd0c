package schema

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/dbscope/dbscope/internal/database"
)

const (
	// DefaultTableSearchLimit caps SearchTables results when no limit is given.
	DefaultTableSearchLimit = 20
	// DefaultColumnSearchLimit caps SearchColumns results when no limit is given.
	DefaultColumnSearchLimit = 50
)

// SearchTables returns the tables whose names contain any of the comma- or
// whitespace-separated terms, ignoring case. Results keep extraction order
// and each table appears at most once, even when several terms match it.
func (s *Snapshot) SearchTables(term string, limit int) []*database.TableInfo {
	if limit <= 0 {
		limit = DefaultTableSearchLimit
	}
	terms := strings.Fields(strings.ReplaceAll(strings.ToUpper(term), ",", " "))
	if len(terms) == 0 {
		return nil
	}

	var matches []*database.TableInfo
	for _, name := range s.TableNames {
		if len(matches) == limit {
			break
		}
		for _, t := range terms {
			if strings.Contains(name, t) {
				matches = append(matches, s.Tables[name])
				break
			}
		}
	}
	return matches
}

// ColumnMatch groups the matching columns of one table.
type ColumnMatch struct {
	Table   string                `json:"table"`
	Columns []database.ColumnInfo `json:"columns"`
}

// SearchColumns returns the columns whose names contain term, grouped by
// table in extraction order. The limit caps the number of tables in the
// result, not the number of columns.
func (s *Snapshot) SearchColumns(term string, limit int) []ColumnMatch {
	if limit <= 0 {
		limit = DefaultColumnSearchLimit
	}
	needle := strings.ToUpper(strings.TrimSpace(term))
	if needle == "" {
		return nil
	}

	var matches []ColumnMatch
	for _, name := range s.TableNames {
		if len(matches) == limit {
			break
		}
		t := s.Tables[name]
		if t == nil {
			continue
		}
		var cols []database.ColumnInfo
		for _, c := range t.Columns {
			if strings.Contains(strings.ToUpper(c.Name), needle) {
				cols = append(cols, c)
			}
		}
		if len(cols) > 0 {
			matches = append(matches, ColumnMatch{Table: name, Columns: cols})
		}
	}
	return matches
}

// CodeObjects returns the code objects matching the kind and name pattern,
// in extraction order. An empty kind matches every kind; the pattern
// supports '%' as a wildcard and ignores case.
func (s *Snapshot) CodeObjects(kind, namePattern string) []*database.CodeObjectInfo {
	kindFilter := strings.ToUpper(strings.TrimSpace(kind))

	results := []*database.CodeObjectInfo{}
	for _, name := range s.ObjectNames {
		o := s.Objects[name]
		if o == nil {
			continue
		}
		if kindFilter != "" && strings.ToUpper(o.Kind) != kindFilter {
			continue
		}
		if !likeMatch(o.Name, namePattern) {
			continue
		}
		results = append(results, o)
	}
	return results
}

// UserTypes returns the user-defined types matching the name pattern, in
// extraction order. The pattern supports '%' as a wildcard and ignores
// case; an empty pattern matches all.
func (s *Snapshot) UserTypes(namePattern string) []*database.UserTypeInfo {
	results := []*database.UserTypeInfo{}
	for _, name := range s.TypeNames {
		t := s.Types[name]
		if t == nil {
			continue
		}
		if !likeMatch(t.Name, namePattern) {
			continue
		}
		results = append(results, t)
	}
	return results
}

// SuggestTables returns up to max table names closest to name by edit
// distance, for "did you mean" hints when a lookup misses.
func (s *Snapshot) SuggestTables(name string, max int) []string {
	target := normalizeName(name)
	if target == "" || max <= 0 {
		return nil
	}

	type scored struct {
		name string
		dist int
	}
	threshold := len(target)/2 + 1
	var candidates []scored
	for _, t := range s.TableNames {
		d := levenshtein.DistanceForStrings([]rune(target), []rune(t), levenshtein.DefaultOptions)
		if d <= threshold {
			candidates = append(candidates, scored{name: t, dist: d})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].dist < candidates[j].dist
	})
	if len(candidates) > max {
		candidates = candidates[:max]
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}

// likeMatch reports whether name matches pattern, where '%' matches any run
// of characters. Comparison ignores case. An empty pattern matches all.
func likeMatch(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	n := strings.ToUpper(name)
	p := strings.ToUpper(pattern)

	if !strings.Contains(p, "%") {
		return n == p
	}

	parts := strings.Split(p, "%")

	if parts[0] != "" {
		if !strings.HasPrefix(n, parts[0]) {
			return false
		}
		n = n[len(parts[0]):]
	}

	last := parts[len(parts)-1]
	for _, seg := range parts[1 : len(parts)-1] {
		if seg == "" {
			continue
		}
		idx := strings.Index(n, seg)
		if idx < 0 {
			return false
		}
		n = n[idx+len(seg):]
	}

	if last != "" && !strings.HasSuffix(n, last) {
		return false
	}
	return true
}
