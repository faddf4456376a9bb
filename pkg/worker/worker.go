// Package worker implements the single-writer catalog/image consumer: one
// goroutine owns the catalog connection and executes every image-resize
// job, serializing all of it behind one command channel.
package worker

import (
	"github.com/sirupsen/logrus"

	"github.com/FalconSN/booruchan/pkg/catalog"
	"github.com/FalconSN/booruchan/pkg/transcode"
)

// ChannelCapacity bounds in-flight requests from all platform pipelines.
const ChannelCapacity = 10

// SelectCmd asks for the prior catalog entry for (Platform, ID).
type SelectCmd struct {
	Platform string
	ID       int64
	Reply    chan<- SelectResult
}

// SelectResult is the worker's reply to a SelectCmd.
type SelectResult struct {
	Entry catalog.Entry
	Found bool
	Err   error
}

// InsertCmd upserts an entry; fire-and-forget, no reply.
type InsertCmd struct {
	Platform string
	Entry    catalog.Entry
}

// ImageCmd asks the worker to produce a resized JPEG derivative.
type ImageCmd struct {
	Src       string
	DestParts []string
	MaxW      int
	MaxH      int
	Fallback  string
	Reply     chan<- ImageResult
}

// ImageResult is the worker's reply to an ImageCmd.
type ImageResult struct {
	Path  string
	Found bool
	Err   error
}

// CloseCmd asks the worker to drain and exit.
type CloseCmd struct {
	Done chan<- struct{}
}

// Worker owns the catalog connection and runs every command serially.
type Worker struct {
	catalog *catalog.Catalog
	cmds    chan any
}

// New creates a worker bound to an already-open catalog.
func New(c *catalog.Catalog) *Worker {
	return &Worker{
		catalog: c,
		cmds:    make(chan any, ChannelCapacity),
	}
}

// Commands returns the channel pipelines send commands on.
func (w *Worker) Commands() chan<- any {
	return w.cmds
}

// Run executes the receive-dispatch-ack loop until a CloseCmd is observed,
// then returns. Intended to run on its own goroutine.
func (w *Worker) Run() {
	for cmd := range w.cmds {
		switch c := cmd.(type) {
		case SelectCmd:
			w.handleSelect(c)
		case InsertCmd:
			w.handleInsert(c)
		case ImageCmd:
			w.handleImage(c)
		case CloseCmd:
			close(c.Done)
			return
		}
	}
}

func (w *Worker) handleSelect(c SelectCmd) {
	entry, found, err := w.catalog.Select(c.Platform, c.ID)
	c.Reply <- SelectResult{Entry: entry, Found: found, Err: err}
}

func (w *Worker) handleInsert(c InsertCmd) {
	if err := w.catalog.Insert(c.Platform, c.Entry); err != nil {
		logrus.WithError(err).Fatalf("worker: insert failed for %s/%d, catalog schema may have drifted", c.Platform, c.Entry.ID)
	}
}

func (w *Worker) handleImage(c ImageCmd) {
	path, ok, err := transcode.Resize(c.Src, c.DestParts, c.MaxW, c.MaxH, c.Fallback)
	if err != nil {
		logrus.WithError(err).Fatal("worker: image job failed fatally")
	}
	c.Reply <- ImageResult{Path: path, Found: ok}
}
