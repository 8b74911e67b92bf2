package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rohmanhakim/parkfetch/internal/pipeline"
	"github.com/rohmanhakim/parkfetch/internal/record"
	"github.com/rohmanhakim/parkfetch/internal/render"
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Interactively pick a state, then a site to search around",
	Long: `browse asks for a state name and lists its sites. Entering a site number
searches for places near it; "back" returns to the state prompt and "exit"
quits. Selection mistakes are reported and the prompt is shown again.
Output always goes to the terminal; --output is ignored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()
		return s.browse(cmd, bufio.NewScanner(cmd.InOrStdin()))
	},
}

const (
	statePrompt = `Enter a state name (e.g. Michigan, michigan) or "exit": `
	sitePrompt  = `Choose the number for detail search or "exit" or "back": `
)

func (s *session) browse(cmd *cobra.Command, in *bufio.Scanner) error {
	out := cmd.OutOrStdout()
	for {
		stateName, ok := prompt(out, in, statePrompt)
		if !ok || strings.EqualFold(stateName, "exit") {
			fmt.Fprintln(out, "bye!")
			return nil
		}

		sites, err := s.sitesForState(cmd.Context(), stateName)
		if err != nil {
			if isSelectionError(err) {
				fmt.Fprintln(out, "[Error] Enter proper state name")
				continue
			}
			if s.reportable(cmd, err) {
				fmt.Fprintf(out, "[Error] %s\n", err)
				continue
			}
			return err
		}
		if err := render.Sites(out, s.format, strings.ToLower(stateName), sites); err != nil {
			return err
		}

		done, err := s.browseSites(cmd, in, sites)
		if err != nil || done {
			return err
		}
	}
}

// browseSites returns done=true when the user asked to exit.
func (s *session) browseSites(cmd *cobra.Command, in *bufio.Scanner, sites []record.Site) (bool, error) {
	out := cmd.OutOrStdout()
	for {
		choice, ok := prompt(out, in, sitePrompt)
		if !ok || strings.EqualFold(choice, "exit") {
			fmt.Fprintln(out, "bye!")
			return true, nil
		}
		if strings.EqualFold(choice, "back") {
			return false, nil
		}

		site, err := s.selectSite(sites, choice)
		if err != nil {
			fmt.Fprintln(out, "[Error] Invalid input")
			continue
		}
		if s.cfg.APIKey() == "" {
			fmt.Fprintf(out, "[Error] %s\n", errMissingAPIKey)
			continue
		}
		result, err := s.nearby(cmd, site)
		if err != nil {
			if s.reportable(cmd, err) {
				fmt.Fprintf(out, "[Error] %s\n", err)
				continue
			}
			return false, err
		}
		if err := render.Places(out, s.format, site, result.Places()); err != nil {
			return false, err
		}
	}
}

func prompt(out io.Writer, in *bufio.Scanner, text string) (string, bool) {
	fmt.Fprint(out, text)
	if !in.Scan() {
		fmt.Fprintln(out)
		return "", false
	}
	return strings.TrimSpace(in.Text()), true
}

// reportable tells whether a failed lookup can be shown and the prompt
// repeated. Only a cancelled session ends the loop.
func (s *session) reportable(cmd *cobra.Command, err error) bool {
	var fetchFailed *pipeline.FetchFailedError
	return errors.As(err, &fetchFailed) && cmd.Context().Err() == nil
}

func isSelectionError(err error) bool {
	var invalid *pipeline.InvalidSelectionError
	return errors.As(err, &invalid)
}
