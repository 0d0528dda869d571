package storage

import (
	"bufio"
	"fmt"
	"os"

	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

// writeLines writes one URL per line, flushing and syncing before close
func writeLines(filePath string, lines []string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("%w: create visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := writer.WriteString(line + "\n"); err != nil {
			return fmt.Errorf("%w: write visited log '%s': %w", utils.ErrFilesystem, filePath, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("%w: flush visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("%w: sync visited log '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	return nil
}
