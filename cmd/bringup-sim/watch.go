package main

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const (
	debounceDelay = 100 * time.Millisecond
	killGrace     = 2 * time.Second
)

// childArgs drops --watch so the child runs the program directly.
func childArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--watch" || strings.HasPrefix(a, "--watch=") {
			continue
		}
		out = append(out, a)
	}
	return out
}

// supervise runs this executable with args in a child process and restarts
// it, a simulated power cycle, each time the program file is written.
func supervise(ctx context.Context, log zerolog.Logger, path string, args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	changed := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for cycle := 1; ; cycle++ {
		childCtx, kill := context.WithCancel(ctx)
		cmd := exec.CommandContext(childCtx, exe, args...)
		cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
		cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
		cmd.WaitDelay = killGrace
		if err := cmd.Start(); err != nil {
			kill()
			return err
		}
		exited := make(chan error, 1)
		go func() { exited <- cmd.Wait() }()
		log.Info().Int("cycle", cycle).Int("pid", cmd.Process.Pid).Str("program", path).Msg("power on")

		running := true
		restart := false
		for !restart {
			select {
			case <-ctx.Done():
				kill()
				if running {
					<-exited
				}
				return nil

			case err := <-exited:
				running = false
				ev := log.Info()
				if err != nil {
					ev = log.Warn().Err(err)
				}
				ev.Msg("program ended, waiting for changes")

			case event, ok := <-watcher.Events:
				if !ok {
					kill()
					return nil
				}
				if filepath.Clean(event.Name) != abs || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, func() {
					select {
					case changed <- struct{}{}:
					default:
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					kill()
					return nil
				}
				log.Warn().Err(err).Msg("watcher error")

			case <-changed:
				log.Info().Msg("program changed, power cycling")
				kill()
				if running {
					<-exited
				}
				restart = true
			}
		}
		kill()
	}
}
