// Command chatpack builds, verifies and queries portable packs from
// personal data exports.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chatpack/chatpack/internal/config"
	"github.com/chatpack/chatpack/internal/ingester"
	"github.com/chatpack/chatpack/internal/pack"
	"github.com/chatpack/chatpack/internal/scanner"
	"github.com/chatpack/chatpack/internal/searcher"
	"github.com/chatpack/chatpack/internal/storage"
	"github.com/chatpack/chatpack/pkg/types"
)

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func main() {
	log.SetOutput(os.Stderr)
	log.SetFlags(0)

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatpack",
		Short:         "chatpack - turn a personal data export into a searchable pack",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = fmt.Sprintf("%s (driver %s, %s build)", Version, storage.DriverName, storage.BuildMode)
	cmd.SetVersionTemplate("chatpack version {{.Version}}\n")

	cmd.PersistentFlags().String("config", "", "path to YAML config file")

	cmd.AddCommand(
		newScanCmd(),
		newIngestCmd(),
		newVerifyCmd(),
		newSearchCmd(),
	)
	return cmd
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <export-dir>",
		Short: "Classify export files without ingesting anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := scanner.Scan(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("total:     %d files, %s\n", result.TotalFiles, humanize.Bytes(uint64(result.TotalBytes)))
			fmt.Printf("messages:  %d\n", len(result.Messages))
			fmt.Printf("posts:     %d\n", len(result.Posts))
			fmt.Printf("comments:  %d\n", len(result.Comments))
			fmt.Printf("reactions: %d\n", len(result.Reactions))
			if len(result.HTML) > 0 {
				fmt.Printf("html:      %d (unsupported, will not be ingested)\n", len(result.HTML))
			}
			return nil
		},
	}
}

func newIngestCmd() *cobra.Command {
	var out string
	var force bool

	cmd := &cobra.Command{
		Use:   "ingest <export-dir>",
		Short: "Ingest an export into a pack directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ing := ingester.New(cfg)
			result, err := ing.Run(cmd.Context(), args[0], out, ingester.Options{
				Force: force,
				Log:   log.Printf,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\n", result.PackID, result.OutDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "pack", "pack output directory")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-ingest files even if unchanged")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <pack-dir>",
		Short: "Check a pack's structural integrity and counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := pack.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("ok: %s\n", report.PackID)
			fmt.Printf("threads=%d messages=%d posts=%d comments=%d reactions=%d documents=%d\n",
				report.Counts.Threads, report.Counts.Messages, report.Counts.Posts,
				report.Counts.Comments, report.Counts.Reactions, report.Counts.Documents)
			if report.FTSSampleDocID != "" {
				fmt.Printf("fts sample: %s\n", report.FTSSampleDocID)
			}
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	var packDir string
	var category string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a full-text query against a pack",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := pack.ReadManifest(packDir)
			if err != nil {
				return err
			}
			store, err := storage.OpenSQLiteStorage(filepath.Join(packDir, manifest.Files.Store))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			s := searcher.New(store)
			resp, err := s.Search(cmd.Context(), searcher.Request{
				Query:    args[0],
				Category: types.Category(category),
				Limit:    limit,
			})
			if err != nil {
				return err
			}
			for _, hit := range resp.Hits {
				fmt.Printf("%s\t%s\n", hit.DocID, hit.Text)
			}
			log.Printf("%d hits in %s", len(resp.Hits), resp.Duration)
			return nil
		},
	}

	cmd.Flags().StringVarP(&packDir, "pack", "p", "pack", "pack directory")
	cmd.Flags().StringVarP(&category, "category", "c", "", "restrict to one category (messages|posts|comments)")
	cmd.Flags().IntVarP(&limit, "limit", "n", searcher.DefaultLimit, "maximum number of hits")
	return cmd
}
