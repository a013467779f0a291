package workflow

import (
	"encoding/json"
	"fmt"
)

const (
	classTypeKey = "class_type"
	inputsKey    = "inputs"
	widgetsKey   = "widgets_values"
)

// Node is one step of a template graph. Nodes are decoded as raw JSON objects
// so that fields this package does not interpret survive a patch/serialize
// round trip; the full patched graph is posted back to the engine.
type Node struct {
	raw map[string]any
}

func (n *Node) UnmarshalJSON(data []byte) error {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.raw = raw
	return nil
}

func (n *Node) MarshalJSON() ([]byte, error) {
	if n == nil || n.raw == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(n.raw)
}

// ClassType returns the node's type tag, or "" when absent.
func (n *Node) ClassType() string {
	if n == nil {
		return ""
	}
	value, _ := n.raw[classTypeKey].(string)
	return value
}

// Inputs returns the named-input map if the node carries one.
func (n *Node) Inputs() (map[string]any, bool) {
	if n == nil {
		return nil, false
	}
	inputs, ok := n.raw[inputsKey].(map[string]any)
	return inputs, ok
}

// WidgetList returns the positional widget-value list if the node carries one.
func (n *Node) WidgetList() ([]any, bool) {
	if n == nil {
		return nil, false
	}
	list, ok := n.raw[widgetsKey].([]any)
	return list, ok
}

// WidgetMap returns the keyed widget-value map if the node carries one.
func (n *Node) WidgetMap() (map[string]any, bool) {
	if n == nil {
		return nil, false
	}
	m, ok := n.raw[widgetsKey].(map[string]any)
	return m, ok
}

// SetWidgetIndex overwrites one position of the widget list. Returns false
// when the node has no list or the index is out of range.
func (n *Node) SetWidgetIndex(index int, value any) bool {
	list, ok := n.WidgetList()
	if !ok || index < 0 || index >= len(list) {
		return false
	}
	list[index] = value
	return true
}

// Graph is a template graph keyed by node identifier.
type Graph map[string]*Node

// Clone deep-copies the graph through a JSON round trip, mirroring how the
// engine itself will see the submitted structure.
func (g Graph) Clone() (Graph, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encode graph: %w", err)
	}
	var copied Graph
	if err := json.Unmarshal(data, &copied); err != nil {
		return nil, fmt.Errorf("decode graph copy: %w", err)
	}
	return copied, nil
}
