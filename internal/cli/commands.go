package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rohmanhakim/parkfetch/internal/build"
	"github.com/rohmanhakim/parkfetch/internal/pipeline"
	"github.com/rohmanhakim/parkfetch/internal/record"
	"github.com/rohmanhakim/parkfetch/internal/render"
	"github.com/spf13/cobra"
)

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "List every state with national park sites",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		states, classified := s.pipeline.StateIndex(cmd.Context())
		if classified != nil {
			return classified
		}
		return s.emit(cmd, func(w io.Writer) error {
			return render.States(w, s.format, states)
		})
	},
}

var sitesCmd = &cobra.Command{
	Use:     "sites <state>",
	Short:   "List the national park sites of a state",
	Example: "  parkfetch sites michigan\n  parkfetch sites \"new york\" --format markdown",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		stateName := strings.Join(args, " ")
		sites, err := s.sitesForState(cmd.Context(), stateName)
		if err != nil {
			return err
		}
		return s.emit(cmd, func(w io.Writer) error {
			return render.Sites(w, s.format, strings.ToLower(stateName), sites)
		})
	},
}

var nearbyCmd = &cobra.Command{
	Use:     "nearby <state> <number>",
	Short:   "Search places near the n-th site of a state",
	Example: "  PARKFETCH_API_KEY=... parkfetch nearby michigan 3",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		if s.cfg.APIKey() == "" {
			return errMissingAPIKey
		}

		stateName := strings.Join(args[:len(args)-1], " ")
		choice := args[len(args)-1]

		sites, err := s.sitesForState(cmd.Context(), stateName)
		if err != nil {
			return err
		}
		site, err := s.selectSite(sites, choice)
		if err != nil {
			return err
		}
		result, err := s.nearby(cmd, site)
		if err != nil {
			return err
		}
		return s.emit(cmd, func(w io.Writer) error {
			return render.Places(w, s.format, site, result.Places())
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), build.Banner())
	},
}

var errMissingAPIKey = errors.New("places search needs an API key: set PARKFETCH_API_KEY or pass --api-key")

func (s *session) sitesForState(ctx context.Context, stateName string) ([]record.Site, error) {
	states, err := s.pipeline.StateIndex(ctx)
	if err != nil {
		return nil, err
	}
	stateURL, err := s.pipeline.SelectState(states, stateName)
	if err != nil {
		return nil, err
	}
	sites, err := s.pipeline.SitesForState(ctx, stateURL)
	if err != nil {
		return nil, err
	}
	return sites, nil
}

func (s *session) selectSite(sites []record.Site, choice string) (record.Site, error) {
	n, convErr := strconv.Atoi(strings.TrimSpace(choice))
	if convErr != nil {
		return record.Site{}, &pipeline.InvalidSelectionError{
			Message:   "not a number",
			Selection: choice,
		}
	}
	site, err := s.pipeline.SelectSite(sites, n)
	if err != nil {
		return record.Site{}, err
	}
	return site, nil
}

func (s *session) nearby(cmd *cobra.Command, site record.Site) (pipeline.ProximityResult, error) {
	result, err := s.pipeline.NearbyPlaces(cmd.Context(), site)
	if err != nil {
		return pipeline.ProximityResult{}, err
	}
	return result, nil
}
