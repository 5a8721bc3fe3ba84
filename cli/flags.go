package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abiiranathan/goflag"
	"go.uber.org/zap"

	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/database"
	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/pdf"
	"github.com/Abbass-Hassan/RamaytiLibrary-sub000/search"
)

// DefineFlags registers the subcommands and their flags. runserver is
// injected by main to avoid an import cycle with the server package.
func DefineFlags(config *Config, logger *zap.Logger, runserver func()) *goflag.Context {
	ctx := goflag.NewContext()

	configFlag := goflag.Flag{
		FlagType:  goflag.FlagFilePath,
		Name:      "config",
		ShortName: "c",
		Value:     &config.ConfigFile,
		Usage:     "Path to a YAML config file",
		Required:  false,
	}

	databaseFlag := goflag.Flag{
		FlagType:  goflag.FlagString,
		Name:      "database",
		ShortName: "d",
		Value:     &config.Database,
		Usage:     "Path to the sqlite database",
		Required:  false,
	}

	ctx.AddSubCommand("runserver", "Start the library HTTP server", runserver).
		AddFlag(goflag.FlagInt, "port", "p", &config.Port, "The port to run the server on", false).
		AddFlag(goflag.FlagString, "books-dir", "b", &config.BooksDir, "Directory for uploaded PDFs", false).
		AddFlag(goflag.FlagInt, "workers", "w", &config.Workers, "Extraction worker count", false).
		AddFlagPtr(&databaseFlag).
		AddFlagPtr(&configFlag)

	ctx.AddSubCommand("extract", "Extract a PDF (path or URL) and print per-page stats", func() {
		runExtract(config, logger)
	}).AddFlag(goflag.FlagString, "source", "s", &config.Source, "PDF path or URL", true).
		AddFlagPtr(&configFlag)

	ctx.AddSubCommand("search", "Search every indexed book in the database", func() {
		runSearch(config, logger)
	}).AddFlag(goflag.FlagString, "query", "q", &config.Pattern, "The text to search for", true).
		AddFlagPtr(&databaseFlag).
		AddFlagPtr(&configFlag)

	return ctx
}

func applyConfigFile(config *Config, logger *zap.Logger) {
	if config.ConfigFile == "" {
		return
	}
	if err := config.LoadFile(config.ConfigFile); err != nil {
		logger.Fatal("invalid config file", zap.Error(err))
	}
}

func runExtract(config *Config, logger *zap.Logger) {
	applyConfigFile(config, logger)

	extractor := pdf.New(logger,
		pdf.WithFetchTimeout(time.Duration(config.FetchTimeoutSecs)*time.Second))

	pages, err := extractor.Extract(context.Background(), config.Source)
	if err != nil {
		logger.Fatal("extraction failed", zap.Error(err))
	}

	blank := 0
	for _, page := range pages {
		if strings.TrimSpace(page) == "" {
			blank++
		}
	}
	fmt.Printf("%s: %d pages (%d blank)\n", config.Source, len(pages), blank)
	for i, page := range pages {
		fmt.Printf("  page %d: %d chars\n", i+1, len(page))
	}
}

func runSearch(config *Config, logger *zap.Logger) {
	applyConfigFile(config, logger)

	store, err := database.Open(config.Database, logger)
	if err != nil {
		logger.Fatal("unable to open database", zap.Error(err))
	}
	defer store.Close()

	coordinator := search.NewCoordinator(store, logger, config.Workers)
	results, err := coordinator.SearchBooks(context.Background(), nil, config.Pattern)
	if err != nil {
		logger.Fatal("search failed", zap.Error(err))
	}

	for _, r := range results {
		fmt.Printf("%s  page %d: %s\n", r.BookTitle, r.Page, r.Snippet)
	}
	fmt.Printf("%d matches\n", len(results))
}
