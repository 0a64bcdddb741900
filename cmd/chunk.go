package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-qa/internal/chunker"
	"document-qa/internal/fetcher"
	"document-qa/internal/helper"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/rag"
	"document-qa/internal/tokenizer"
)

var chunkJSON bool

// chunkCmd is a dry run: text is extracted and chunked but nothing is sent to the API.
var chunkCmd = &cobra.Command{
	Use:   "chunk <file|url>...",
	Short: "Extract and chunk documents without embedding them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		counter, err := tokenizer.New(cfg.Chunking.Encoding)
		if err != nil {
			return err
		}
		splitter, err := chunker.NewPunktSplitter()
		if err != nil {
			return err
		}
		ch := chunker.New(splitter, counter, cfg.Chunking.TokenBudget)

		p := parser.New()
		f := fetcher.New(p,
			fetcher.WithHTTPClient(&http.Client{Timeout: cfg.FetchTimeout()}),
			fetcher.WithDownloadDir(cfg.Fetch.DownloadDir),
			fetcher.WithReadChunkSize(cfg.Fetch.ReadChunkSize),
		)
		return chunkTargets(cmd.Context(), os.Stdout, p, f, ch, args, chunkJSON)
	},
}

func init() {
	chunkCmd.Flags().BoolVar(&chunkJSON, "json", false, "Print chunks as JSON")
}

// chunkTargets prints the chunks of every target. URLs rejected as non-public are
// skipped with a warning; any other failure aborts.
func chunkTargets(ctx context.Context, w io.Writer, p parser.Parser, f rag.URLFetcher, ch *chunker.Chunker, targets []string, asJSON bool) error {
	for _, target := range targets {
		doc := &models.Document{Source: target}
		var err error
		if isURL(target) {
			doc, err = f.Fetch(ctx, target)
			if errors.Is(err, fetcher.ErrInvalidURL) {
				log.Warn().Str("url", target).Err(err).Msg("Skipping url")
				continue
			}
		} else {
			doc.Content, err = p.ExtractFile(target)
		}
		if err != nil {
			return err
		}
		doc.Chunks = ch.Chunks(target, doc.Content)

		if asJSON {
			helper.PrettyPrint(w, doc)
			continue
		}
		fmt.Fprintf(w, "%s: %d chunks (budget %d tokens)\n", doc.Source, len(doc.Chunks), ch.Budget())
		for _, c := range doc.Chunks {
			fmt.Fprintf(w, "--- chunk %d, %d tokens\n%s\n", c.Index, c.Tokens, c.Content)
		}
	}
	return nil
}
