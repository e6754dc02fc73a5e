package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/xtorcount/internal/config"
)

const watchDebounce = 100 * time.Millisecond

// sourceExts are the file types whose change triggers a recount.
var sourceExts = map[string]bool{
	".cdl": true, ".sp": true, ".spi": true, ".cir": true,
	".v": true, ".vh": true, ".sv": true, ".svh": true, ".vg": true,
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <cdl> <netlist>",
		Short: "Recount whenever an input changes",
		Long: `Count once, then watch the directories of the inputs, the CDL libraries and
the include directories, and count again after every change. Failures are
reported and watching continues. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args[0], args[1])
		},
	}
}

func runWatch(cmd *cobra.Command, cdlPath, netlistPath string) error {
	ctx := cmd.Context()
	logger := getLogger(ctx)
	cfg := getConfig(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	dirs, err := watchDirs(cfg, cdlPath, netlistPath)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			logger.Error("failed to watch directory", "dir", dir, "error", err)
		}
	}

	// Debounced runs may overlap a slow one.
	var mu sync.Mutex
	recount := func() {
		mu.Lock()
		defer mu.Unlock()
		idx := newIndexer(cmd)
		res, err := idx.Run(ctx, cdlPath, netlistPath)
		if err == nil {
			err = idx.Write(res)
		}
		if err != nil {
			reportError(cmd.ErrOrStderr(), err)
		}
	}
	recount()

	deb := &debouncer{delay: watchDebounce}
	defer deb.stop()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !isSource(event.Name) {
				continue
			}
			name := event.Name
			deb.trigger(func() {
				if ctx.Err() != nil {
					return
				}
				logger.Debug("file changed, recounting", "file", name)
				fmt.Fprintf(cmd.ErrOrStderr(), "\n%s changed\n", name)
				recount()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher error", "error", err)
		}
	}
}

// debouncer runs the last triggered func once triggers stop arriving for
// delay.
type debouncer struct {
	delay   time.Duration
	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	wg      sync.WaitGroup
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.cancelLocked()
	d.wg.Add(1)
	d.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		fn()
	})
}

// stop drops a pending run and waits for one already started to return.
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	d.cancelLocked()
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *debouncer) cancelLocked() {
	// Stop reports true only when fn never started, so its Done is ours.
	if d.timer != nil && d.timer.Stop() {
		d.wg.Done()
	}
	d.timer = nil
}

// watchDirs returns the sorted set of directories holding the inputs, the
// resolved CDL libraries and the include directories.
func watchDirs(cfg *config.Config, cdlPath, netlistPath string) ([]string, error) {
	libs, err := cfg.ResolveLibraries()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	add := func(dir string) {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		seen[dir] = true
	}
	for _, f := range append([]string{cdlPath, netlistPath}, libs...) {
		add(filepath.Dir(f))
	}
	for _, d := range cfg.ResolveIncludeDirs() {
		add(d)
	}

	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs, nil
}

func isSource(name string) bool {
	return sourceExts[strings.ToLower(filepath.Ext(name))]
}
