package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAMLEditor provides structured editing of the YAML config file using
// the yaml.v3 Node API, preserving comments and formatting.
type YAMLEditor struct {
	path string
}

// NewYAMLEditor creates a new editor for the given config file path.
func NewYAMLEditor(path string) *YAMLEditor {
	return &YAMLEditor{path: path}
}

// AddDashboard appends a seed dashboard under the given key.
func (e *YAMLEditor) AddDashboard(key string, d DashboardConfig) error {
	doc, root, err := e.load()
	if err != nil {
		return err
	}

	dbNode := ensureMapping(root, "dashboards")
	if findMappingKey(dbNode, key) != nil {
		return fmt.Errorf("dashboard '%s' already exists", key)
	}

	var valueNode yaml.Node
	if err := valueNode.Encode(d); err != nil {
		return fmt.Errorf("encoding dashboard '%s': %w", key, err)
	}
	dbNode.Content = append(dbNode.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&valueNode,
	)
	return e.save(doc)
}

// DeleteDashboard removes a seed dashboard and drops it from every profile.
func (e *YAMLEditor) DeleteDashboard(key string) error {
	doc, root, err := e.load()
	if err != nil {
		return err
	}

	dbNode := findMappingKey(root, "dashboards")
	if dbNode == nil {
		return fmt.Errorf("no dashboards section in config")
	}
	idx := findMappingKeyIndex(dbNode, key)
	if idx < 0 {
		return fmt.Errorf("dashboard '%s' not found", key)
	}
	// a key-value pair is two consecutive entries in Content
	dbNode.Content = append(dbNode.Content[:idx], dbNode.Content[idx+2:]...)

	if profiles := findMappingKey(root, "profiles"); profiles != nil {
		for i := 1; i < len(profiles.Content); i += 2 {
			list := findMappingKey(profiles.Content[i], "dashboards")
			if list == nil || list.Kind != yaml.SequenceNode {
				continue
			}
			kept := list.Content[:0]
			for _, n := range list.Content {
				if n.Value != key {
					kept = append(kept, n)
				}
			}
			list.Content = kept
		}
	}
	return e.save(doc)
}

// SetFootprint sets or updates the footprint override of a widget kind.
func (e *YAMLEditor) SetFootprint(kind string, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("footprint must be positive, got %dx%d", width, height)
	}
	doc, root, err := e.load()
	if err != nil {
		return err
	}

	kinds := ensureMapping(root, "kinds")
	entry := findMappingKey(kinds, kind)
	if entry == nil {
		kinds.Content = append(kinds.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: kind},
			&yaml.Node{Kind: yaml.MappingNode},
		)
		entry = kinds.Content[len(kinds.Content)-1]
	}
	setScalar(entry, "width", strconv.Itoa(width), "!!int")
	setScalar(entry, "height", strconv.Itoa(height), "!!int")
	return e.save(doc)
}

// SetValue sets a scalar setting by dotted key, e.g. "mirror.url".
func (e *YAMLEditor) SetValue(key, value string) error {
	section, field, ok := strings.Cut(key, ".")
	if !ok || section == "" || field == "" {
		return fmt.Errorf("setting '%s' must look like section.field", key)
	}
	if err := Default().Set(key, value); err != nil {
		return err
	}

	doc, root, err := e.load()
	if err != nil {
		return err
	}
	setScalar(ensureMapping(root, section), field, value, "")
	return e.save(doc)
}

func (e *YAMLEditor) load() (*yaml.Node, *yaml.Node, error) {
	data, err := os.ReadFile(e.path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parsing config: %w", err)
	}

	if doc.Kind == 0 {
		// empty file
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil, fmt.Errorf("invalid YAML document")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("root is not a mapping")
	}

	return &doc, root, nil
}

func (e *YAMLEditor) save(doc *yaml.Node) error {
	out, err := os.Create(e.path)
	if err != nil {
		return fmt.Errorf("opening config for write: %w", err)
	}
	defer out.Close()

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// ensureMapping returns the mapping under key, creating it when absent.
func ensureMapping(root *yaml.Node, key string) *yaml.Node {
	if n := findMappingKey(root, key); n != nil && n.Kind == yaml.MappingNode {
		return n
	}
	if idx := findMappingKeyIndex(root, key); idx >= 0 {
		root.Content[idx+1] = &yaml.Node{Kind: yaml.MappingNode}
		return root.Content[idx+1]
	}
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&yaml.Node{Kind: yaml.MappingNode},
	)
	return root.Content[len(root.Content)-1]
}

func setScalar(mapping *yaml.Node, key, value, tag string) {
	if n := findMappingKey(mapping, key); n != nil {
		n.Kind = yaml.ScalarNode
		n.Value = value
		n.Tag = tag
		n.Content = nil
		return
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Value: value, Tag: tag},
	)
}

// findMappingKey finds the value node for a key in a MappingNode.
func findMappingKey(mapping *yaml.Node, key string) *yaml.Node {
	if mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// findMappingKeyIndex returns the index of a key in a MappingNode's Content, or -1.
func findMappingKeyIndex(mapping *yaml.Node, key string) int {
	if mapping.Kind != yaml.MappingNode {
		return -1
	}
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value == key {
			return i
		}
	}
	return -1
}
