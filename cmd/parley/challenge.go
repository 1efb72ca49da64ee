package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/parleyhq/parley/internal/challenge"
	"github.com/parleyhq/parley/internal/models"
	"github.com/spf13/cobra"
)

func newChallengeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Challenge catalog commands",
	}

	cmd.AddCommand(newChallengeListCmd())
	cmd.AddCommand(newChallengeSeedCmd())
	return cmd
}

func newChallengeListCmd() *cobra.Command {
	var (
		configPath string
		category   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available challenges",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			challenges, err := challenge.List(gormDB, models.ChallengeCategory(category))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(challenges) == 0 {
				fmt.Fprintln(out, "No challenges found. Run \"parley challenge seed\" to load the templates.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tCATEGORY\tDIFFICULTY")
			for _, c := range challenges {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					c.ID, truncate(c.Title, 40), c.Category, c.Difficulty)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	return cmd
}

func newChallengeSeedCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the built-in challenge templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := challenge.SeedTemplates(gormDB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Challenge templates seeded.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "parley.yaml", "path to Parley config file")
	return cmd
}
