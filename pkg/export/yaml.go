package export

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/site-mapper/pkg/crawler"
	"github.com/Sriram-PR/site-mapper/pkg/models"
	"github.com/Sriram-PR/site-mapper/pkg/utils"
)

// BuildMetadata assembles the YAML metadata document for res
// siteConfig is the effective configuration as a generic map and may be nil.
func BuildMetadata(res *crawler.Result, siteConfig map[string]interface{}) models.CrawlMetadata {
	inDegrees := res.Graph.InDegrees()
	nodes := make([]models.NodeMetadata, 0, len(res.Graph.Nodes))
	for _, id := range res.Graph.Nodes {
		succ := res.Graph.Successors(id)
		nodes = append(nodes, models.NodeMetadata{
			ID:        id,
			OutDegree: len(succ),
			InDegree:  inDegrees[id],
			LinksTo:   succ,
		})
	}

	var fetchErrors map[string]int64
	if len(res.Stats.FetchErrors) > 0 {
		fetchErrors = res.Stats.FetchErrors
	}

	return models.CrawlMetadata{
		RunID:             res.RunID,
		SeedURL:           res.Seed,
		AllowedDomain:     res.Domain,
		RootNode:          res.Root,
		CrawlStartTime:    res.StartedAt,
		CrawlEndTime:      res.FinishedAt,
		TotalNodes:        len(res.Graph.Nodes),
		TotalEdges:        len(res.Graph.Edges),
		VisitedURLs:       len(res.Visited),
		Stats:             res.Stats.AsMap(),
		FetchErrors:       fetchErrors,
		SiteConfiguration: siteConfig,
		Nodes:             nodes,
	}
}

// WriteMetadataYAML marshals metadata to filePath, replacing any existing file
func WriteMetadataYAML(filePath string, metadata models.CrawlMetadata) error {
	yamlData, err := yaml.Marshal(&metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal crawl metadata to YAML for run '%s': %w", metadata.RunID, err)
	}
	if err := os.WriteFile(filePath, yamlData, 0644); err != nil {
		return fmt.Errorf("%w: writing metadata YAML file '%s': %w", utils.ErrFilesystem, filePath, err)
	}
	return nil
}
