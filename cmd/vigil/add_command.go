package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vigil/internal/config"
	"vigil/internal/queue"
)

var footageExtensions = map[string]struct{}{
	".mp4": {},
	".mkv": {},
	".mov": {},
	".avi": {},
	".wav": {},
	".mp3": {},
	".m4a": {},
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "add <footage-file>...",
		Short: "Queue footage files for transcript analysis",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				for _, arg := range args {
					path, err := resolveFootagePath(arg)
					if err != nil {
						return err
					}
					run, err := store.NewRun(cmd.Context(), path, title)
					if err != nil {
						return fmt.Errorf("enqueue %s: %w", path, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Queued run %d: %s\n", run.ID, run.Title)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Title for the queued run (defaults to the file name)")
	return cmd
}

func resolveFootagePath(arg string) (string, error) {
	trimmed := strings.TrimSpace(arg)
	if trimmed == "" {
		return "", fmt.Errorf("footage path is required")
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", trimmed, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("inspect %q: %w", abs, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%q is a directory", abs)
	}
	ext := strings.ToLower(filepath.Ext(abs))
	if _, ok := footageExtensions[ext]; !ok {
		return "", fmt.Errorf("unsupported footage extension %q", ext)
	}
	return abs, nil
}
