package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/studyplanner/planner/config"
	"github.com/studyplanner/planner/internal/timetable"
	"golang.org/x/term"
)

var timetableUsername string

var timetableCmd = &cobra.Command{
	Use:   "timetable",
	Short: "Inspect portal timetable pages",
}

var timetableParseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a saved timetable page and print the events as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return printParse(cmd, string(page))
	},
}

var timetableFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch today's timetable from the portal and print the events as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(timetableUsername) == "" {
			return errors.New("--username is required")
		}

		fmt.Fprint(os.Stderr, "Portal password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		cfg := config.LoadConfig()
		fetcher := timetable.NewFetcher(timetable.FetcherConfig{
			URL:       cfg.Timetable.URL,
			UserAgent: cfg.Timetable.UserAgent,
			Timeout:   cfg.Timetable.Timeout,
		}, nil)

		page, err := fetcher.Fetch(cmd.Context(), timetable.Credentials{
			Username: timetableUsername,
			Password: string(password),
		})
		if err != nil {
			return err
		}
		return printParse(cmd, page)
	},
}

func init() {
	rootCmd.AddCommand(timetableCmd)
	timetableFetchCmd.Flags().StringVar(&timetableUsername, "username", "", "portal username")
	timetableCmd.AddCommand(timetableParseCmd, timetableFetchCmd)
}

// printParse writes the parse result even when the page holds no events.
func printParse(cmd *cobra.Command, page string) error {
	result, err := timetable.Parse(page)
	if err != nil && !errors.Is(err, timetable.ErrNoEvents) {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
