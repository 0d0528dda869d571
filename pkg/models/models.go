package models

import "time"

// Task represents a URL and the hop depth at which it was discovered
type Task struct {
	URL   string
	Depth int
}

// EdgeEvent is published once for every edge newly added to the crawl graph
type EdgeEvent struct {
	Source string    // Normalized node id of the linking page
	Target string    // Normalized node id of the linked page
	Depth  int       // Depth of the page whose fetch produced the edge
	At     time.Time // When the edge was recorded
}

// CrawlMetadata holds all metadata for a single crawl run.
type CrawlMetadata struct {
	RunID             string                 `yaml:"run_id"`
	SeedURL           string                 `yaml:"seed_url"`
	AllowedDomain     string                 `yaml:"allowed_domain"`
	RootNode          string                 `yaml:"root_node"`
	CrawlStartTime    time.Time              `yaml:"crawl_start_time"`
	CrawlEndTime      time.Time              `yaml:"crawl_end_time"`
	TotalNodes        int                    `yaml:"total_nodes"`
	TotalEdges        int                    `yaml:"total_edges"`
	VisitedURLs       int                    `yaml:"visited_urls"`
	Stats             map[string]int64       `yaml:"stats,omitempty"`
	FetchErrors       map[string]int64       `yaml:"fetch_errors,omitempty"`
	SiteConfiguration map[string]interface{} `yaml:"site_configuration,omitempty"` // Flexible dump of the effective config
	Nodes             []NodeMetadata         `yaml:"nodes"`
}

// NodeMetadata holds metadata for a single graph node.
type NodeMetadata struct {
	ID        string   `yaml:"id"`
	OutDegree int      `yaml:"out_degree"`
	InDegree  int      `yaml:"in_degree"`
	LinksTo   []string `yaml:"links_to,omitempty"`
}
