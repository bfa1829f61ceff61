package variables

import (
	"fmt"
	"regexp"
)

// Interpolator expands variable references inside a template string.
// Implementations must be safe for concurrent use.
type Interpolator interface {
	Interpolate(template string, scope ScopedVars) string
}

// NoopInterpolator returns templates unchanged.
type NoopInterpolator struct{}

func (NoopInterpolator) Interpolate(template string, _ ScopedVars) string {
	return template
}

var templateVarPattern = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// MapInterpolator expands {{name}} references against a static value map,
// with request-scoped vars taking precedence. Unknown references are left
// untouched. The production variable engine lives outside this module; this
// implementation covers tests and the demo.
type MapInterpolator struct {
	Values map[string]string
}

func (m MapInterpolator) Interpolate(template string, scope ScopedVars) string {
	return templateVarPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := templateVarPattern.FindStringSubmatch(match)[1]
		if sv, ok := scope[name]; ok {
			if sv.Text != "" {
				return sv.Text
			}
			return fmt.Sprint(sv.Value)
		}
		if v, ok := m.Values[name]; ok {
			return v
		}
		return match
	})
}
