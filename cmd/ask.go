package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var askSources []string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a single question, optionally about files or URLs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		if _, err := ingest(cmd.Context(), s, askSources); err != nil {
			return err
		}

		query := strings.Join(args, " ")
		response, err := s.Ask(cmd.Context(), query)
		if err != nil {
			return err
		}

		log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\n", response.Query)

		if len(response.Sources) > 0 {
			log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
			fmt.Printf("%s\n\n", strings.Join(response.Sources, "\n"))
		}

		log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\n", response.Content)
		return nil
	},
}

func init() {
	askCmd.Flags().StringArrayVarP(&askSources, "source", "s", nil, "File or URL to ingest before asking (repeatable)")
}
