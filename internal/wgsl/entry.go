// Package wgsl extracts compute entry points from WGSL source.
//
// It is not a parser: it scans attribute lists in front of fn declarations,
// which is enough to check an entry point exists and to read its workgroup
// size before the compiler runs.
package wgsl

import (
	"regexp"
	"strconv"
	"strings"
)

// EntryPoint is a @compute function.
type EntryPoint struct {
	Name          string
	WorkgroupSize [3]uint32
}

var (
	lineComment  = regexp.MustCompile(`//[^\n]*`)
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	fnDecl       = regexp.MustCompile(`((?:@[A-Za-z_]\w*\s*(?:\([^)]*\))?\s*)*)fn\s+([A-Za-z_]\w*)\s*\(`)
	workgroup    = regexp.MustCompile(`@workgroup_size\s*\(([^)]*)\)`)
	computeAttr  = regexp.MustCompile(`@compute\b`)
)

// EntryPoints returns the @compute functions of source in declaration
// order. Workgroup dimensions that are not integer literals, or that are
// omitted, are reported as 1.
func EntryPoints(source string) []EntryPoint {
	source = blockComment.ReplaceAllString(source, "")
	source = lineComment.ReplaceAllString(source, "")

	var out []EntryPoint
	for _, m := range fnDecl.FindAllStringSubmatch(source, -1) {
		attrs, name := m[1], m[2]
		if !computeAttr.MatchString(attrs) {
			continue
		}
		ep := EntryPoint{Name: name, WorkgroupSize: [3]uint32{1, 1, 1}}
		if wg := workgroup.FindStringSubmatch(attrs); wg != nil {
			for i, dim := range strings.Split(wg[1], ",") {
				if i >= 3 {
					break
				}
				dim = strings.TrimSuffix(strings.TrimSpace(dim), "u")
				if v, err := strconv.ParseUint(dim, 0, 32); err == nil && v > 0 {
					ep.WorkgroupSize[i] = uint32(v)
				}
			}
		}
		out = append(out, ep)
	}
	return out
}

// Find returns the entry point called name.
func Find(source, name string) (EntryPoint, bool) {
	for _, ep := range EntryPoints(source) {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}
