package scanner

import (
	"path"
	"strings"
)

// IgnorePattern is a single gitignore-style rule.
type IgnorePattern struct {
	raw      string
	negate   bool // leading !
	dirOnly  bool // trailing /
	anchored bool // contains a slash before the end
	segments []string
}

// ParseIgnorePattern parses one line of an ignore file.
func ParseIgnorePattern(line string) IgnorePattern {
	p := IgnorePattern{raw: line}
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.Contains(line, "/") {
		p.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	p.segments = strings.Split(line, "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string { return p.raw }

// IsNegation reports whether the pattern re-includes what it matches.
func (p IgnorePattern) IsNegation() bool { return p.negate }

// Match reports whether rel, a slash separated path relative to the ignore
// file's directory, is selected by the pattern. Unanchored patterns match at
// any depth.
func (p IgnorePattern) Match(rel string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	segs := strings.Split(path.Clean(rel), "/")
	if p.anchored {
		return matchSegments(p.segments, segs)
	}
	for i := range segs {
		if matchSegments(p.segments, segs[i:]) {
			return true
		}
	}
	return false
}

// matchSegments matches glob segments against path segments. "**" spans any
// number of segments.
func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pattern[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	if ok, err := path.Match(pattern[0], segs[0]); err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}

// ignoreRule scopes a pattern to the directory its ignore file lives in.
type ignoreRule struct {
	base    string // slash separated, "" for the scan root
	pattern IgnorePattern
}

// ignoreSet evaluates rules in order; the last matching rule wins.
type ignoreSet []ignoreRule

func (s ignoreSet) ignored(rel string, isDir bool) bool {
	ignored := false
	for _, r := range s {
		sub := rel
		if r.base != "" {
			if !strings.HasPrefix(rel, r.base+"/") {
				continue
			}
			sub = strings.TrimPrefix(rel, r.base+"/")
		}
		if r.pattern.Match(sub, isDir) {
			ignored = !r.pattern.negate
		}
	}
	return ignored
}
