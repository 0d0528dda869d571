package utils

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	indentPrefix    = "    "
	entryPrefix     = "├── "
	lastEntryPrefix = "└── "
	verticalLine    = "│   "

	// SeenMarker is appended to a node already expanded elsewhere in the tree
	SeenMarker = " (seen)"
)

// ChildrenFunc returns the ordered children of a node
type ChildrenFunc func(node string) []string

// WriteTree writes a text tree rooted at root to w, expanding each node at most once
// Later occurrences of an expanded node are printed with SeenMarker and not descended into, so cycles terminate.
// It returns the set of nodes that were expanded.
func WriteTree(w io.Writer, title, root string, children ChildrenFunc, log *logrus.Entry) (map[string]bool, error) {
	writer := bufio.NewWriter(w)

	if title != "" {
		if _, err := fmt.Fprintf(writer, "%s\n%s\n\n", title, strings.Repeat("=", len(title))); err != nil {
			return nil, err
		}
	}
	if _, err := fmt.Fprintf(writer, "%s\n", root); err != nil {
		return nil, err
	}

	expanded := map[string]bool{root: true}
	log.Debugf("Initiating tree walk from: %s", root)
	if err := walkTree(writer, root, "", children, expanded, log); err != nil {
		log.Errorf("Error occurred during tree walk from '%s': %v", root, err)
		return nil, fmt.Errorf("error generating tree from '%s': %w", root, err)
	}
	if err := writer.Flush(); err != nil {
		return nil, err
	}
	return expanded, nil
}

// walkTree writes the children of node depth-first
func walkTree(writer io.Writer, node, currentIndent string, children ChildrenFunc, expanded map[string]bool, log *logrus.Entry) error {
	kids := children(node)
	for i, child := range kids {
		isLast := i == len(kids)-1

		connector := entryPrefix
		if isLast {
			connector = lastEntryPrefix
		}

		if expanded[child] {
			if _, err := fmt.Fprintf(writer, "%s%s%s%s\n", currentIndent, connector, child, SeenMarker); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(writer, "%s%s%s\n", currentIndent, connector, child); err != nil {
			log.Errorf("Error writing entry '%s': %v", child, err)
			return err
		}
		expanded[child] = true

		nextIndent := currentIndent
		if isLast {
			nextIndent += indentPrefix // No vertical line needed after last entry
		} else {
			nextIndent += verticalLine
		}
		if err := walkTree(writer, child, nextIndent, children, expanded, log); err != nil {
			return err
		}
	}
	return nil
}
