package email

import "strings"

// Render substitutes {{name}} tokens in tpl with the supplied values by
// literal string replacement. Unknown tokens are left in place; this is
// deliberately not a template engine.
func Render(tpl string, values map[string]string) string {
	if len(values) == 0 {
		return tpl
	}
	pairs := make([]string, 0, len(values)*2)
	for token, value := range values {
		pairs = append(pairs, "{{"+token+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(tpl)
}
