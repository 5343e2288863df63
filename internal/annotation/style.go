package annotation

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// styleEntry is one key of a flow style mapping.
type styleEntry struct {
	key   string
	value any
}

// px formats a pixel length.
func px(v int) string { return strconv.Itoa(v) + "px" }

// renderStyle renders entries as a single-line YAML flow mapping,
// e.g. {style: points, color: blue, size: [32px, 32px], order: 2000}.
func renderStyle(entries ...styleEntry) string {
	node := &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}
	for _, e := range entries {
		if e.value == nil {
			continue
		}
		node.Content = append(node.Content, scalarNode(e.key), valueNode(e.value))
	}

	out, err := yaml.Marshal(node)
	if err != nil {
		return "{}"
	}
	// the emitter wraps flow collections past 80 columns
	return strings.Join(strings.Fields(string(out)), " ")
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

func valueNode(v any) *yaml.Node {
	switch val := v.(type) {
	case string:
		return scalarNode(val)
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(val)}
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(val)}
	case []string:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, s := range val {
			seq.Content = append(seq.Content, scalarNode(s))
		}
		return seq
	default:
		return scalarNode("")
	}
}
