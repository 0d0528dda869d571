package render

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/site-mapper/pkg/graph"
	"github.com/Sriram-PR/site-mapper/pkg/models"
)

// LogRenderer writes each new edge at debug level and a summary on Finish
type LogRenderer struct {
	log   *logrus.Entry
	edges atomic.Int64
}

// NewLogRenderer creates a LogRenderer writing to log
func NewLogRenderer(log *logrus.Entry) *LogRenderer {
	return &LogRenderer{log: log}
}

// EdgeAdded logs ev with its delivery sequence number
func (r *LogRenderer) EdgeAdded(ev models.EdgeEvent) {
	n := r.edges.Add(1)
	r.log.WithFields(logrus.Fields{
		"source": ev.Source,
		"target": ev.Target,
		"depth":  ev.Depth,
		"seq":    n,
	}).Debug("Edge added")
}

// Finish logs the final node and edge counts
func (r *LogRenderer) Finish(snap graph.Snapshot) error {
	r.log.WithFields(logrus.Fields{
		"nodes":          len(snap.Nodes),
		"edges":          len(snap.Edges),
		"edges_rendered": r.edges.Load(),
	}).Info("Site map complete")
	return nil
}
