package loader

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-script/internal/script/eval"
)

// describeService builds the service metadata for fn. A doc string that
// starts with "yaml" is parsed as a YAML document; any other doc string is
// the description, with one field per positional argument.
func describeService(fn *eval.Function) (map[string]any, error) {
	doc := strings.TrimLeft(fn.Doc, " \n\r")
	if doc == "" {
		doc = fmt.Sprintf("script function %s()", fn.Name)
	}

	if rest, ok := strings.CutPrefix(doc, "yaml"); ok {
		desc := map[string]any{}
		if err := yaml.Unmarshal([]byte(strings.TrimLeft(rest, " \n\r")), &desc); err != nil {
			return nil, fmt.Errorf("decoding yaml doc string of %s(): %w", fn.Name, err)
		}
		return desc, nil
	}

	fields := make(map[string]any)
	for _, arg := range fn.PositionalArgs() {
		fields[arg] = map[string]any{"description": "argument " + arg}
	}
	return map[string]any{"description": doc, "fields": fields}, nil
}
