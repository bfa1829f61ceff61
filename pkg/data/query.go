package data

import (
	"maps"

	"github.com/the-cloud-source/scenes/pkg/datasource"
)

// Query is one declarative query definition on a node. RefID is mandatory
// and unique within the node. Fields carries the datasource-specific payload
// untyped; this module pipes it through without interpreting it.
type Query struct {
	RefID      string          `json:"refId"`
	QueryType  string          `json:"queryType,omitempty"`
	Datasource *datasource.Ref `json:"datasource,omitempty"`
	Hide       bool            `json:"hide,omitempty"`
	Fields     map[string]any  `json:"fields,omitempty"`
}

// Clone returns a deep copy, including nested maps and slices inside Fields.
// Requests carry cloned targets so executors can never reach back into node
// state.
func (q Query) Clone() Query {
	out := q
	if q.Datasource != nil {
		ref := *q.Datasource
		out.Datasource = &ref
	}
	if q.Fields != nil {
		out.Fields = cloneFieldMap(q.Fields)
	}
	return out
}

// CloneQueries deep-copies a slice of query definitions.
func CloneQueries(in []Query) []Query {
	if in == nil {
		return nil
	}
	out := make([]Query, len(in))
	for i, q := range in {
		out[i] = q.Clone()
	}
	return out
}

func cloneFieldMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneFieldValue(v)
	}
	return out
}

func cloneFieldValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		return cloneFieldMap(tv)
	case map[string]string:
		return maps.Clone(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = cloneFieldValue(e)
		}
		return out
	case []string:
		out := make([]string, len(tv))
		copy(out, tv)
		return out
	default:
		return v
	}
}
