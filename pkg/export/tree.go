package export

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-mapper/pkg/crawler"
	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

// WriteTree renders the link tree of res from its root node to w
// Nodes the walk from the root cannot reach are listed at the end.
func WriteTree(w io.Writer, res *crawler.Result, log *logrus.Entry) error {
	title := fmt.Sprintf("Site map for: %s", res.Seed)
	expanded, err := utils.WriteTree(w, title, res.Root, res.Graph.Successors, log)
	if err != nil {
		return err
	}

	var unreachable []string
	for _, id := range res.Graph.Nodes {
		if !expanded[id] {
			unreachable = append(unreachable, id)
		}
	}
	if len(unreachable) == 0 {
		return nil
	}
	log.Warnf("%d node(s) not reachable from root %s", len(unreachable), res.Root)
	if _, err := fmt.Fprintf(w, "\nUnreachable from %s:\n", res.Root); err != nil {
		return err
	}
	for _, id := range unreachable {
		if _, err := fmt.Fprintf(w, "%s\n", id); err != nil {
			return err
		}
	}
	return nil
}

// WriteTreeFile writes the link tree to filePath, replacing any existing file
func WriteTreeFile(filePath string, res *crawler.Result, log *logrus.Entry) (err error) {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: creating tree file '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: closing tree file '%s': %w", utils.ErrFilesystem, filePath, cerr)
		}
	}()
	if err := WriteTree(file, res, log); err != nil {
		return fmt.Errorf("%w: writing tree file '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	return nil
}
