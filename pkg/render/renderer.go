// Package render delivers graph growth to display sinks without blocking the crawl.
package render

import (
	"errors"

	"github.com/Sriram-PR/site-mapper/pkg/graph"
	"github.com/Sriram-PR/site-mapper/pkg/models"
)

// Renderer consumes crawl graph updates
// EdgeAdded is called once per newly-added edge from a single goroutine; Finish is called once after the last EdgeAdded.
type Renderer interface {
	EdgeAdded(ev models.EdgeEvent)
	Finish(snap graph.Snapshot) error
}

type multiRenderer []Renderer

// Multi fans events out to every renderer in order
func Multi(renderers ...Renderer) Renderer {
	out := make(multiRenderer, 0, len(renderers))
	for _, r := range renderers {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func (m multiRenderer) EdgeAdded(ev models.EdgeEvent) {
	for _, r := range m {
		r.EdgeAdded(ev)
	}
}

func (m multiRenderer) Finish(snap graph.Snapshot) error {
	var errs []error
	for _, r := range m {
		if err := r.Finish(snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards everything
type Nop struct{}

func (Nop) EdgeAdded(models.EdgeEvent)  {}
func (Nop) Finish(graph.Snapshot) error { return nil }
