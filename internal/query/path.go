package query

import (
	"strconv"
	"strings"

	"github.com/argusdb/argus/internal/jsonb"
)

// CompileDottedPath compiles a dotted field path ("a.b.c") into the
// codec's step representation. Each dot-separated segment becomes a
// field step; a segment that parses as a non-negative integer is still
// treated as a field name here, since a plain dotted path never indexes
// into an array — index steps are reserved for the `$.a[0].b` syntax
// compiled by CompileJSONPath.
func CompileDottedPath(dotted string) []jsonb.Step {
	if dotted == "" {
		return nil
	}
	parts := strings.Split(dotted, ".")
	steps := make([]jsonb.Step, len(parts))
	for i, p := range parts {
		steps[i] = jsonb.FieldStep(p)
	}
	return steps
}

// CompileJSONPath compiles a backtick-escaped JSONPath expression of the
// form `` `$.a[0].b` `` into the same step representation
// CompileDottedPath produces, so the execution engine never needs to
// distinguish the two surface syntaxes. The leading "$" root token is
// consumed; array subscripts become index steps.
func CompileJSONPath(path string) []jsonb.Step {
	path = strings.TrimPrefix(path, "`")
	path = strings.TrimSuffix(path, "`")
	path = strings.TrimSpace(path)
	path = strings.TrimPrefix(path, "$")

	var steps []jsonb.Step
	i := 0
	for i < len(path) {
		switch path[i] {
		case '.':
			i++
		case '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return steps
			}
			idxStr := path[i+1 : i+end]
			if n, err := strconv.Atoi(idxStr); err == nil {
				steps = append(steps, jsonb.IndexStep(n))
			}
			i += end + 1
		default:
			end := i
			for end < len(path) && path[end] != '.' && path[end] != '[' {
				end++
			}
			steps = append(steps, jsonb.FieldStep(path[i:end]))
			i = end
		}
	}
	return steps
}
