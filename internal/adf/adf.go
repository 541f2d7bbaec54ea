// Package adf reduces Atlassian Document Format trees to plain text.
package adf

import "strings"

// Body is the top-level document of a comment or description.
type Body struct {
	Content []Node `json:"content"`
}

// Node is one document node. Either field may be absent.
type Node struct {
	Text    string `json:"text,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// Text flattens the document depth-first, left to right, joining
// non-empty fragments with single spaces. A node's own text comes
// before its children.
func Text(b *Body) string {
	if b == nil {
		return ""
	}
	var parts []string
	for _, n := range b.Content {
		if t := nodeText(n); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func nodeText(n Node) string {
	var parts []string
	if n.Text != "" {
		parts = append(parts, n.Text)
	}
	for _, c := range n.Content {
		if t := nodeText(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
