// Package doctree holds the heading structure of a locally parsed document.
package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Text content of this node (may be empty for container nodes)
	Children []*DocNode // Subsections
}

// PlainText flattens the tree into the text sent for annotation. Headings
// sit on their own line and blocks are separated by a blank line.
func (t *DocTree) PlainText() string {
	var blocks []string
	var walk func(nodes []*DocNode)
	walk = func(nodes []*DocNode) {
		for _, n := range nodes {
			if title := strings.TrimSpace(n.Title); title != "" {
				blocks = append(blocks, title)
			}
			if text := strings.TrimSpace(n.Text); text != "" {
				blocks = append(blocks, text)
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return strings.Join(blocks, "\n\n")
}

// Builder assembles a tree from a flat stream of headings and paragraphs.
// A heading nests under the closest preceding heading of a lower level.
type Builder struct {
	root    *DocNode
	stack   []level
	pending []string
}

type level struct {
	node  *DocNode
	depth int
}

func NewBuilder(title string) *Builder {
	root := &DocNode{Title: title}
	return &Builder{root: root, stack: []level{{node: root}}}
}

// Heading opens a section at depth (1 for a top-level heading).
func (b *Builder) Heading(depth int, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	b.flush()
	n := &DocNode{Title: title}
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].depth >= depth {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, n)
	b.stack = append(b.stack, level{node: n, depth: depth})
}

// Paragraph adds body text to the current section.
func (b *Builder) Paragraph(text string) {
	if text = strings.TrimSpace(text); text != "" {
		b.pending = append(b.pending, text)
	}
}

// Tree finishes the document. Text before the first heading becomes a
// leading untitled node.
func (b *Builder) Tree() *DocTree {
	b.flush()
	tree := &DocTree{Title: b.root.Title, Children: b.root.Children}
	if b.root.Text != "" {
		tree.Children = append([]*DocNode{{Text: b.root.Text}}, tree.Children...)
	}
	return tree
}

func (b *Builder) flush() {
	if len(b.pending) == 0 {
		return
	}
	top := b.stack[len(b.stack)-1].node
	text := strings.Join(b.pending, "\n\n")
	if top.Text != "" {
		top.Text += "\n\n" + text
	} else {
		top.Text = text
	}
	b.pending = b.pending[:0]
}
