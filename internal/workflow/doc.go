// Package workflow models engine node graphs: loading template files from
// disk, deep-copying them per job, and patching caller-supplied values into
// nodes.
//
// Template files come from two generations of authoring tools and mix two
// value encodings per node: a named-input map ("inputs") and a positional or
// keyed widget list ("widgets_values"). The patcher handles both through an
// ordered rule table; see patch.go.
package workflow
