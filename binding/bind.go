package binding

import "strings"

// Parameter is a named value supplied by the user.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Bind replaces placeholders in template with parameter values.
//
// Parameters are applied in list order against the progressively rewritten
// string, so a parameter whose token is a prefix of a later token (":a" before
// ":ab") rewrites part of the later placeholder. Placeholders with no matching
// parameter are left as they are.
func Bind(template string, p Pattern, params []Parameter) string {
	out := template
	global := p.Global()
	for _, param := range params {
		token := p.Token(param.Name)
		if global {
			out = strings.ReplaceAll(out, token, param.Value)
		} else {
			out = strings.Replace(out, token, param.Value, 1)
		}
	}
	return out
}
