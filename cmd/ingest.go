package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|url>...",
	Short: "Extract, chunk and embed documents, then report what was produced",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		docs, err := ingest(cmd.Context(), s, args)
		for _, d := range docs {
			tokens := 0
			for _, c := range d.Chunks {
				tokens += c.Tokens
			}
			dims := 0
			if len(d.Chunks) > 0 {
				dims = len(d.Chunks[0].Embedding)
			}
			fmt.Printf("%s\t%d chunks\t%d tokens\t%d-dim vectors\n", d.Source, len(d.Chunks), tokens, dims)
		}
		return err
	},
}
