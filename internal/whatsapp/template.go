package whatsapp

import (
	"sort"
	"strconv"
	"strings"
)

// TemplateData describes one template send. Variable maps are keyed by
// positional string indices ("1", "2", ...).
type TemplateData struct {
	Name         string            `json:"name"`
	LanguageCode string            `json:"language_code"`
	BodyText     string            `json:"body_text,omitempty"`
	HeaderVars   map[string]string `json:"header_vars,omitempty"`
	BodyVars     map[string]string `json:"body_vars,omitempty"`
	FooterVars   map[string]string `json:"footer_vars,omitempty"`
}

// Render expands every {{key}} placeholder present in vars. Keys missing
// from the map are left literal. Placeholders are disjoint, so application
// order does not affect the result.
func Render(text string, vars map[string]string) string {
	for key, value := range vars {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}

// Parameters builds the provider parameter list from a variable map. The
// destination API requires numeric ascending key order: "10" sorts after
// "9", not between "1" and "2".
func Parameters(vars map[string]string) []Parameter {
	if len(vars) == 0 {
		return nil
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aErr := strconv.Atoi(keys[i])
		b, bErr := strconv.Atoi(keys[j])
		switch {
		case aErr == nil && bErr == nil:
			return a < b
		case aErr == nil:
			return true
		case bErr == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	params := make([]Parameter, 0, len(keys))
	for _, key := range keys {
		params = append(params, Parameter{Type: "text", Text: vars[key]})
	}
	return params
}

// BuildComponents assembles the component list for a template send. A group
// with no variables contributes no block at all, never an empty one.
func BuildComponents(data TemplateData) []Component {
	var components []Component
	if params := Parameters(data.HeaderVars); len(params) > 0 {
		components = append(components, Component{Type: "header", Parameters: params})
	}
	if params := Parameters(data.BodyVars); len(params) > 0 {
		components = append(components, Component{Type: "body", Parameters: params})
	}
	if params := Parameters(data.FooterVars); len(params) > 0 {
		components = append(components, Component{Type: "footer", Parameters: params})
	}
	return components
}

// DisplayBody returns the substituted body text used as stored message
// content. Without a body text a bracketed template label stands in.
func (d TemplateData) DisplayBody() string {
	if strings.TrimSpace(d.BodyText) == "" {
		return "[Template: " + d.Name + "]"
	}
	return Render(d.BodyText, d.BodyVars)
}
