package export

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/Sriram-PR/site-mapper/pkg/graph"
	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

// tsvHeader is the first line of the edge list
const tsvHeader = "source\ttarget"

// WriteEdgesTSV writes one "source<TAB>target" line per edge, in snapshot order
func WriteEdgesTSV(filePath string, snap graph.Snapshot) (err error) {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: creating TSV file '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: closing TSV file '%s': %w", utils.ErrFilesystem, filePath, cerr)
		}
	}()

	writer := bufio.NewWriter(file)
	if _, err := fmt.Fprintln(writer, tsvHeader); err != nil {
		return fmt.Errorf("%w: writing TSV header: %w", utils.ErrFilesystem, err)
	}
	for _, e := range snap.Edges {
		if _, err := fmt.Fprintf(writer, "%s\t%s\n", tsvField(e.From), tsvField(e.To)); err != nil {
			return fmt.Errorf("%w: writing TSV row: %w", utils.ErrFilesystem, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: flushing TSV file '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	return nil
}

// tsvField keeps a node id on one column; escaped paths never contain these, raw fallbacks might
func tsvField(s string) string {
	return strings.NewReplacer("\t", " ", "\n", " ", "\r", " ").Replace(s)
}
