package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"vigil/internal/config"
	"vigil/internal/manualindex"
	"vigil/internal/services/embed"
)

var manualExtensions = map[string]struct{}{
	".md":  {},
	".txt": {},
}

func newIndexCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the procedure manual index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newIndexBuildCommand(ctx))
	cmd.AddCommand(newIndexQueryCommand(ctx))
	cmd.AddCommand(newIndexStatusCommand(ctx))
	return cmd
}

func newIndexBuildCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <manual-dir>",
		Short: "Build the manual index from a directory of procedure documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			docs, err := loadManualDocuments(args[0])
			if err != nil {
				return err
			}

			index, closeIndex, err := openManualIndex(cfg)
			if err != nil {
				return err
			}
			defer closeIndex()

			if err := index.Build(cmd.Context(), docs, cfg.Retrieval.ChunkChars); err != nil {
				return fmt.Errorf("build manual index: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d document(s) into %d chunk(s).\n", len(docs), index.ChunkCount())
			fmt.Fprintf(cmd.OutOrStdout(), "Corpus fingerprint: %s\n", index.Fingerprint())
			return nil
		},
	}
	return cmd
}

func newIndexQueryCommand(ctx *commandContext) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Retrieve the most relevant manual excerpts for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			index, closeIndex, err := openManualIndex(cfg)
			if err != nil {
				return err
			}
			defer closeIndex()

			if err := index.Load(cmd.Context()); err != nil {
				return fmt.Errorf("load manual index: %w", err)
			}

			k := topK
			if k <= 0 {
				k = cfg.Retrieval.TopK
			}
			matches, err := index.Query(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
				return nil
			}

			rows := make([][]string, 0, len(matches))
			for _, match := range matches {
				excerpt := match.Chunk.Text
				if len(excerpt) > 120 {
					excerpt = excerpt[:117] + "..."
				}
				rows = append(rows, []string{
					fmt.Sprintf("%.3f", match.Score),
					match.Chunk.Source,
					excerpt,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Score", "Source", "Excerpt"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of excerpts to retrieve (defaults to retrieval.top_k)")
	return cmd
}

func newIndexStatusCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current manual index state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			index, closeIndex, err := openManualIndex(cfg)
			if err != nil {
				return err
			}
			defer closeIndex()

			if err := index.Load(cmd.Context()); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Index at %s is not built: %v\n", cfg.Paths.IndexPath, err)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Index: %s\n", cfg.Paths.IndexPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Chunks: %d\n", index.ChunkCount())
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", index.Fingerprint())
			return nil
		},
	}
	return cmd
}

func openManualIndex(cfg *config.Config) (*manualindex.Index, func(), error) {
	embedder, err := embed.NewClient(embed.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey,
	})
	if err != nil {
		return nil, nil, err
	}
	store, err := manualindex.OpenStore(cfg.Paths.IndexPath)
	if err != nil {
		return nil, nil, err
	}
	index := manualindex.NewIndex(store, embedder)
	return index, func() { store.Close() }, nil
}

func loadManualDocuments(dir string) ([]manualindex.Document, error) {
	root, err := filepath.Abs(strings.TrimSpace(dir))
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("inspect manual directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", root)
	}

	var docs []manualindex.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := manualExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		docs = append(docs, manualindex.Document{
			Name: filepath.ToSlash(rel),
			Text: string(data),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}
