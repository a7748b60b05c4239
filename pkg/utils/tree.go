package utils

import (
	"net/url"
	"sort"
	"strings"
)

const (
	indentPrefix    = "    "
	entryPrefix     = "├── "
	lastEntryPrefix = "└── "
	verticalLine    = "│   "
)

type treeNode struct {
	children map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{children: make(map[string]*treeNode)}
}

func (n *treeNode) insert(segments []string) {
	if len(segments) == 0 {
		return
	}
	child, ok := n.children[segments[0]]
	if !ok {
		child = newTreeNode()
		n.children[segments[0]] = child
	}
	child.insert(segments[1:])
}

// BuildURLTree renders a text-based tree of the given URLs grouped by host
// and path segments, e.g.
//
//	example.com/
//	├── docs
//	│   └── intro
//	└── about
//
// URLs that fail to parse are skipped.
func BuildURLTree(urls []string) string {
	root := newTreeNode()
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		segments := []string{u.Host}
		for _, part := range strings.Split(strings.Trim(u.Path, "/"), "/") {
			if part != "" {
				segments = append(segments, part)
			}
		}
		root.insert(segments)
	}

	var sb strings.Builder
	hosts := sortedKeys(root.children)
	for _, host := range hosts {
		sb.WriteString(host)
		sb.WriteString("/\n")
		writeTreeLevel(&sb, root.children[host], "")
	}
	return sb.String()
}

func writeTreeLevel(sb *strings.Builder, node *treeNode, currentIndent string) {
	names := sortedKeys(node.children)
	for i, name := range names {
		isLast := i == len(names)-1

		connector := entryPrefix
		if isLast {
			connector = lastEntryPrefix
		}
		sb.WriteString(currentIndent)
		sb.WriteString(connector)
		sb.WriteString(name)
		sb.WriteString("\n")

		nextIndent := currentIndent
		if isLast {
			nextIndent += indentPrefix
		} else {
			nextIndent += verticalLine
		}
		writeTreeLevel(sb, node.children[name], nextIndent)
	}
}

func sortedKeys(m map[string]*treeNode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})
	return keys
}
