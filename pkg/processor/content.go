package processor

import (
	"strconv"
	"strings"

	"github.com/nainya/standardstore/pkg/standards"
)

// Line formats one breadcrumb entry: "Depth N: text" or "Depth N (notation): text".
func Line(n *standards.Node) string {
	var b strings.Builder
	b.WriteString("Depth ")
	b.WriteString(strconv.Itoa(n.DepthValue()))
	if n.StatementNotation != "" {
		b.WriteString(" (")
		b.WriteString(n.StatementNotation)
		b.WriteString(")")
	}
	b.WriteString(": ")
	b.WriteString(n.Text())
	return b.String()
}

// Content joins the breadcrumb lines of the ancestors (outermost first)
// and the node itself with single newlines.
func Content(ancestors []*standards.Node, n *standards.Node) string {
	lines := make([]string, 0, len(ancestors)+1)
	for _, a := range ancestors {
		lines = append(lines, Line(a))
	}
	lines = append(lines, Line(n))
	return strings.Join(lines, "\n")
}

// Content builds the breadcrumb text of id from the tree it was built from.
func (m *Maps) Content(id string) string {
	idx, ok := m.index[id]
	if !ok {
		return ""
	}
	return m.contentOf(idx, m.walk(idx))
}

// contentOf takes the walk chain of idx, immediate parent first.
func (m *Maps) contentOf(idx uint32, chain []uint32) string {
	ancestors := make([]*standards.Node, len(chain))
	for i, p := range chain {
		ancestors[len(chain)-1-i] = m.nodes[p]
	}
	return Content(ancestors, m.nodes[idx])
}
