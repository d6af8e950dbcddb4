package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/FileShelf/internal/app"
	"github.com/dharsanguruparan/FileShelf/internal/classify"
	"github.com/dharsanguruparan/FileShelf/internal/model"
)

func newClassifyCmd() *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "classify FILE...",
		Short: "Classify local files with the configured classifier",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			var capability classify.Capability
			if cfg.AI.Enabled() {
				chat, err := classify.NewOpenAI(cmd.Context(), classify.OpenAIConfig{
					APIKey:  cfg.AI.APIKey,
					BaseURL: cfg.AI.BaseURL,
					Model:   cfg.AI.Model,
				})
				if err != nil {
					return err
				}
				capability = chat
			}
			classifier := classify.New(capability, classify.Options{Timeout: cfg.AI.Timeout}, logger)
			out := cmd.OutOrStdout()
			for _, path := range args {
				desc, content, err := describeLocal(path, model.ParseKind(kind), cfg.AI.ExcerptBytes)
				if err != nil {
					return err
				}
				meta := classifier.Classify(cmd.Context(), desc, content)
				fmt.Fprintf(out, "%s\t%s\n", desc.Name, classify.Describe(meta))
				if meta.Description != "" {
					fmt.Fprintf(out, "\t%s\n", meta.Description)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "document", "Transport kind: document, photo, video or audio")
	return cmd
}

func describeLocal(path string, kind model.FileKind, excerpt int64) (classify.Descriptor, *classify.Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return classify.Descriptor{}, nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return classify.Descriptor{}, nil, err
	}
	head, err := io.ReadAll(io.LimitReader(f, excerpt))
	if err != nil {
		return classify.Descriptor{}, nil, fmt.Errorf("read %s: %w", path, err)
	}
	name := filepath.Base(path)
	desc := classify.Descriptor{Name: name, Kind: kind, Size: info.Size()}
	return desc, classify.BuildContent(name, "", head, int(excerpt)), nil
}

func newRecommendCmd() *cobra.Command {
	var (
		user  string
		count int
	)
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Print recommendations for a user from persisted state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if count <= 0 {
				count = a.Config.Recommend.Count
			}
			ids := a.Engine.Recommend(user, catalog(a), count)
			return printFiles(cmd.OutOrStdout(), a, ids)
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "User ID")
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of files (default from config)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSimilarCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "similar FILE_ID",
		Short: "Print files similar to a stored file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if count <= 0 {
				count = a.Config.Recommend.SimilarCount
			}
			return printFiles(cmd.OutOrStdout(), a, a.Engine.Similar(args[0], catalog(a), count))
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of files (default from config)")
	return cmd
}

func newOrganizeCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "organize",
		Short: "Group stored files by category",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			records := a.Catalog.List()
			if user != "" {
				records = a.Catalog.ListByUploader(user)
			}
			ids := make([]string, 0, len(records))
			for _, rec := range records {
				ids = append(ids, rec.ID)
			}
			out := cmd.OutOrStdout()
			for _, group := range a.Engine.Categories(ids) {
				fmt.Fprintf(out, "%s (%d)\n", group.Category, len(group.FileIDs))
				if err := printFiles(out, a, group.FileIDs); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "Only files uploaded by this user")
	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print catalog and classification totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			st := a.Catalog.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "files:       %d\n", st.Files)
			fmt.Fprintf(out, "uploaders:   %d\n", st.Uploaders)
			fmt.Fprintf(out, "total bytes: %d\n", st.TotalBytes)
			fmt.Fprintf(out, "classified:  %d\n", a.Metadata.Len())
			fmt.Fprintf(out, "users:       %d\n", a.Preferences.Len())
			return nil
		},
	}
}

func catalog(a *app.App) []string {
	records := a.Catalog.List()
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	return ids
}

func printFiles(w io.Writer, a *app.App, ids []string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, id := range ids {
		rec, err := a.Catalog.Get(id)
		if err != nil {
			continue
		}
		category := "-"
		if meta, ok := a.Metadata.Get(id); ok {
			category = string(meta.Category)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\n", rec.ID, rec.Name, category, rec.Size)
	}
	return tw.Flush()
}
