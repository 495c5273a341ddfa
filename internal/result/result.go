// Package result models the outcome of a deployment.
//
// A Result is a tree: every value is either a nested mapping (Result or
// map[string]any), a list ([]any) or a scalar. Results returned by the
// execution facade are opaque to the engine, which only folds them together
// with Merge.
package result

// Result is a mapping node of a result tree.
type Result map[string]any

// Kind classifies a node of a result tree.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindMapping
)

// KindOf reports the kind of v. Both Result and map[string]any are mappings.
func KindOf(v any) Kind {
	switch v.(type) {
	case Result, map[string]any:
		return KindMapping
	case []any, []string:
		return KindList
	default:
		return KindScalar
	}
}

// Merge returns a new Result holding a deep merge of dst and src. Where both
// hold a mapping under the same key the mappings are merged key by key;
// in every other case the value from src wins. Lists are replaced, not
// appended. Neither argument is modified.
func Merge(dst, src Result) Result {
	out := make(Result, len(dst)+len(src))
	for k, v := range dst {
		out[k] = clone(v)
	}
	for k, v := range src {
		if existing, ok := out[k]; ok && KindOf(existing) == KindMapping && KindOf(v) == KindMapping {
			out[k] = Merge(asResult(existing), asResult(v))
			continue
		}
		out[k] = clone(v)
	}
	return out
}

// Fold merges results left to right, starting from an empty Result.
func Fold(results ...Result) Result {
	out := Result{}
	for _, r := range results {
		out = Merge(out, r)
	}
	return out
}

// Get walks a key path through nested mappings.
func (r Result) Get(path ...string) (any, bool) {
	var cur any = r
	for _, key := range path {
		if KindOf(cur) != KindMapping {
			return nil, false
		}
		next, ok := asResult(cur)[key]
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Changed reports the top level "changed" flag.
func (r Result) Changed() bool {
	changed, _ := r["changed"].(bool)
	return changed
}

func asResult(v any) Result {
	switch m := v.(type) {
	case Result:
		return m
	case map[string]any:
		return Result(m)
	}
	return nil
}

func clone(v any) any {
	switch t := v.(type) {
	case Result:
		return Merge(nil, t)
	case map[string]any:
		return Merge(nil, Result(t))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clone(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
