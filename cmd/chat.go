package main

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"document-qa/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat [file|url]...",
	Short: "Start an interactive chat over the given documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		if _, err := ingest(cmd.Context(), s, args); err != nil {
			return err
		}

		// the alt screen owns the terminal; logs go to --log-file or nowhere
		if logFile == "" {
			log.Logger = log.Output(io.Discard)
		}
		_, err = tea.NewProgram(tui.New(cmd.Context(), s), tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
		return err
	},
}
