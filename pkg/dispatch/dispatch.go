// Package dispatch builds the worker and the platform pipelines and joins
// them, implementing the process's top-level concurrency shape.
package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/vbauerster/mpb/v8"
	"golang.org/x/sync/errgroup"

	"github.com/FalconSN/booruchan/pkg/catalog"
	"github.com/FalconSN/booruchan/pkg/config"
	"github.com/FalconSN/booruchan/pkg/moebooru"
	"github.com/FalconSN/booruchan/pkg/worker"
)

// Run opens the catalog, builds one worker and one shared HTTP client,
// spawns one pipeline goroutine per enabled platform, joins them, then
// closes the worker. The first pipeline error (if any) is returned once
// every pipeline and the worker have finished.
//
// roots, when non-nil, overrides a platform's list endpoint (keyed by
// platform name) instead of the compiled-in site root; production callers
// pass nil, tests point it at an httptest server.
func Run(ctx context.Context, cfg *config.Config, home string, roots map[string]string) error {
	cat, err := catalog.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("dispatch: opening catalog: %w", err)
	}
	defer cat.Close()

	w := worker.New(cat)
	workerDone := make(chan struct{})
	go func() {
		w.Run()
		close(workerDone)
	}()

	client := &http.Client{}
	progress := mpb.New(mpb.WithWidth(40))

	g, gctx := errgroup.WithContext(ctx)
	for name, platform := range cfg.Platforms {
		if len(platform.Tags) == 0 {
			continue
		}
		name, platform := name, platform
		g.Go(func() error {
			p := &moebooru.Pipeline{
				Name:     name,
				Root:     roots[name],
				Config:   platform,
				Client:   client,
				Commands: w.Commands(),
				Home:     home,
				Progress: progress,
			}
			return p.Run(gctx)
		})
	}

	runErr := g.Wait()
	progress.Wait()

	done := make(chan struct{})
	w.Commands() <- worker.CloseCmd{Done: done}
	<-done

	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
	}

	return runErr
}
