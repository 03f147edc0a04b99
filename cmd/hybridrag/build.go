package main

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
	"github.com/xhad/hybridrag/pkg/extract"
	"github.com/xhad/hybridrag/pkg/kb"
	"github.com/xhad/hybridrag/pkg/processor"
	"github.com/xhad/hybridrag/pkg/records"
	"github.com/xhad/hybridrag/pkg/scraper"
)

var (
	csvPath  string
	pdfPaths []string
	docsURL  string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the knowledge base from listings and guideline documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		if csvPath == "" && len(pdfPaths) == 0 && docsURL == "" {
			return errors.New("nothing to build: pass --csv, --pdf or --url")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		var properties []models.Property
		if csvPath != "" {
			properties, err = records.Load(csvPath, a.logger)
			if err != nil {
				return err
			}
			color.Green("✓ Loaded %d listings from %s", len(properties), csvPath)
		}

		var sources []types.DocumentSource
		for _, p := range pdfPaths {
			sources = append(sources, extract.PDFFile(p))
		}

		var scraped int32
		if docsURL != "" {
			s, err := scraper.NewWithConfig(scraper.ScraperConfig{
				BaseURL:           docsURL,
				MaxDepth:          a.config.Scraper.MaxDepth,
				RateLimit:         a.config.Scraper.RateLimit,
				IgnorePatterns:    a.config.Scraper.IgnorePatterns,
				AllowedExtensions: a.config.Scraper.AllowedExtensions,
				OnProgress: func(url string) {
					atomic.AddInt32(&scraped, 1)
					a.logger.Printf("scraping %s", url)
				},
			})
			if err != nil {
				return fmt.Errorf("failed to initialize scraper: %w", err)
			}
			sources = append(sources, s)
		}

		proc := processor.NewWithConfig(processor.ProcessorConfig{
			ChunkSize:      a.config.Processor.ChunkSize,
			HeaderFontSize: a.config.Processor.HeaderFontSize,
		})

		spinner := getSpinner("📄 Reading documents...")
		chunks, err := kb.Chunks(ctx, &proc, sources...)
		spinner.Finish()
		if err != nil {
			return fmt.Errorf("failed to read documents: %w", err)
		}
		if docsURL != "" {
			color.Green("\n✓ Scraped %d pages", atomic.LoadInt32(&scraped))
		}
		color.Green("\n✓ Processed into %d chunks", len(chunks))

		index, err := a.openIndex(ctx, false)
		if err != nil {
			return err
		}

		bar := getProgressBar(len(properties)+len(chunks), "🔢 Embedding...")
		builder := kb.NewWithConfig(a.embedder, index, kb.BuilderConfig{
			Concurrency: a.config.LLM.Concurrency,
			IndexPath:   a.config.Index.Path,
			Logger:      a.logger,
			OnProgress: func(done, total int) {
				bar.Set(done)
			},
		})

		stats, err := builder.Build(ctx, properties, chunks)
		bar.Finish()
		if err != nil {
			return err
		}

		color.Green("\n✓ Indexed %d listings and %d chunks (%d listings skipped)",
			stats.Records, stats.Chunks, stats.Skipped)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&csvPath, "csv", "", "Listings CSV file")
	buildCmd.Flags().StringSliceVar(&pdfPaths, "pdf", nil, "Guideline PDF file (repeatable)")
	buildCmd.Flags().StringVar(&docsURL, "url", "", "Guideline website to crawl")
	rootCmd.AddCommand(buildCmd)
}
