package workflow

import "fmt"

// FieldKey addresses a node parameter either by input name or by widget
// position, depending on which encoding the target node uses.
type FieldKey struct {
	name    string
	index   int
	byIndex bool
}

// Name builds a FieldKey addressing a named input or keyed widget value.
func Name(name string) FieldKey {
	return FieldKey{name: name}
}

// Index builds a FieldKey addressing a positional widget value.
func Index(index int) FieldKey {
	return FieldKey{index: index, byIndex: true}
}

func (k FieldKey) String() string {
	if k.byIndex {
		return fmt.Sprintf("#%d", k.index)
	}
	return k.name
}

// Assignment is one (node, field, value) patch instruction.
type Assignment struct {
	NodeID string
	Key    FieldKey
	Value  any
}

// Assign is shorthand for building an Assignment with a named key.
func Assign(nodeID, key string, value any) Assignment {
	return Assignment{NodeID: nodeID, Key: Name(key), Value: value}
}

// Loader node types store their source path as the first widget value in the
// graph encoding. Named-field patching silently no-ops on these nodes in that
// encoding, so they get an explicit carve-out (rule 1 below). New loader
// types must be added here as templates start using them.
var loaderClassTypes = map[string]struct{}{
	"LoadImage":     {},
	"LoadVideo":     {},
	"VHS_LoadVideo": {},
}

// Aliases probed when a loader's named inputs don't contain the requested key.
var loaderInputAliases = []string{"video", "image", "file"}

// textEncoderWidgetIndex returns where free text lives in a widget list.
// WanVideoTextEncodeCached keeps it at position 2; everything else at 0.
func textEncoderWidgetIndex(classType string) int {
	if classType == "WanVideoTextEncodeCached" {
		return 2
	}
	return 0
}

// patchRule is one entry of the ordered encoding-dispatch table. Rules run in
// order; a terminal rule that applies stops further dispatch for the
// assignment, while non-terminal rules fall through so nodes mixing encodings
// get every applicable one patched.
type patchRule struct {
	name     string
	terminal bool
	apply    func(node *Node, key FieldKey, value any) bool
}

var patchRules = []patchRule{
	{
		// Loaders with a positional list take the value at position 0
		// unconditionally, regardless of the requested key.
		name:     "loader widget list",
		terminal: true,
		apply: func(node *Node, _ FieldKey, value any) bool {
			if !isLoader(node) {
				return false
			}
			return node.SetWidgetIndex(0, value)
		},
	},
	{
		// Loaders in the named-input encoding fall back to the conventional
		// parameter aliases when the requested key is absent.
		name: "loader input alias",
		apply: func(node *Node, key FieldKey, value any) bool {
			if !isLoader(node) {
				return false
			}
			inputs, ok := node.Inputs()
			if !ok {
				return false
			}
			if !key.byIndex {
				if _, present := inputs[key.name]; present {
					// The named-input rule below handles the direct hit.
					return false
				}
			}
			for _, alias := range loaderInputAliases {
				if _, present := inputs[alias]; present {
					inputs[alias] = value
					return true
				}
			}
			return false
		},
	},
	{
		name: "named input",
		apply: func(node *Node, key FieldKey, value any) bool {
			if key.byIndex {
				return false
			}
			inputs, ok := node.Inputs()
			if !ok {
				return false
			}
			if _, present := inputs[key.name]; !present {
				return false
			}
			inputs[key.name] = value
			return true
		},
	},
	{
		name: "widget index",
		apply: func(node *Node, key FieldKey, value any) bool {
			if !key.byIndex {
				return false
			}
			return node.SetWidgetIndex(key.index, value)
		},
	},
	{
		name: "widget text",
		apply: func(node *Node, key FieldKey, value any) bool {
			if key.byIndex || key.name != "text" {
				return false
			}
			return node.SetWidgetIndex(textEncoderWidgetIndex(node.ClassType()), value)
		},
	},
	{
		name: "widget map",
		apply: func(node *Node, key FieldKey, value any) bool {
			if key.byIndex {
				return false
			}
			m, ok := node.WidgetMap()
			if !ok {
				return false
			}
			if _, present := m[key.name]; present {
				m[key.name] = value
				return true
			}
			if _, present := m["video"]; present {
				m["video"] = value
				return true
			}
			return false
		},
	},
}

func isLoader(node *Node) bool {
	_, ok := loaderClassTypes[node.ClassType()]
	return ok
}

// Patch applies the assignments to a fresh clone of template and returns the
// clone; the input graph is never mutated. Assignments naming nodes the
// template lacks are ignored, since callers pass values for optional nodes
// not present in every template variant.
func Patch(template Graph, assignments []Assignment) (Graph, error) {
	patched, err := template.Clone()
	if err != nil {
		return nil, err
	}
	for _, assignment := range assignments {
		applyAssignment(patched, assignment)
	}
	return patched, nil
}

func applyAssignment(g Graph, assignment Assignment) {
	node, ok := g[assignment.NodeID]
	if !ok {
		return
	}
	for _, rule := range patchRules {
		applied := rule.apply(node, assignment.Key, assignment.Value)
		if applied && rule.terminal {
			return
		}
	}
}
