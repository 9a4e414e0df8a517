// Package birds provides the record management commands.
package birds

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/datastore"
	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
	"github.com/hellobirdie/hellobirdie/internal/datastore/repository"
	"github.com/hellobirdie/hellobirdie/internal/errors"
)

var headerColor = color.New(color.Bold)

// Command creates the birds command and its sub-commands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "birds",
		Short: "List and edit bird records",
	}

	cmd.AddCommand(
		listCommand(settings),
		addCommand(settings),
		deleteCommand(settings),
		seedCommand(settings),
	)
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	var genus, species, order string
	var limit int

	cmd := &cobra.Command{
		Use:   "list [query...]",
		Short: "List records, optionally matching a search",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := datastore.Open(settings, nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			filters := repository.NewFilters().
				WithGenus(genus).
				WithSpecies(species).
				WithLimit(limit).
				WithOrder(order)

			birds, err := store.Repo.Find(cmd.Context(), strings.Join(args, " "), filters)
			if err != nil {
				return err
			}
			return printTable(cmd.OutOrStdout(), birds)
		},
	}

	cmd.Flags().StringVar(&genus, "genus", "", "Only records of this genus")
	cmd.Flags().StringVar(&species, "species", "", "Only records of this species")
	cmd.Flags().StringVar(&order, "order", repository.DefaultOrder, "Sort column, prefix with - for descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of records (0 lists all)")
	return cmd
}

// printTable writes one aligned row per bird.
func printTable(w io.Writer, birds []entities.Bird) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	headerColor.Fprintln(tw, "ID\tDISPLAY NAME\tFAMILY")
	for i := range birds {
		b := &birds[i]
		family := b.FamilyValue()
		if family == "" {
			family = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", b.ID, b.DisplayName(), family)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d %s\n", len(birds), plural(len(birds)))
	return err
}

func plural(n int) string {
	if n == 1 {
		return "bird"
	}
	return "birds"
}

func addCommand(settings *conf.Settings) *cobra.Command {
	var bird entities.Bird
	var subspecies, family string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a record",
		RunE: func(cmd *cobra.Command, args []string) error {
			bird.Subspecies = entities.OptionalString(subspecies)
			bird.Family = entities.OptionalString(family)
			bird.Normalize()
			if err := bird.Validate(); err != nil {
				return err
			}

			store, err := datastore.Open(settings, nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Repo.Create(cmd.Context(), &bird); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d: %s\n", bird.ID, bird.DisplayName())
			return nil
		},
	}

	cmd.Flags().StringVar(&bird.Genus, "genus", "", "Genus, e.g. Accipiter")
	cmd.Flags().StringVar(&bird.Species, "species", "", "Species epithet, e.g. nisus")
	cmd.Flags().StringVar(&subspecies, "subspecies", "", "Subspecies epithet")
	cmd.Flags().StringVar(&bird.EnglishName, "english-name", "", "English common name")
	cmd.Flags().StringVar(&family, "family", "", "Family, e.g. Accipitridae")
	_ = cmd.MarkFlagRequired("genus")
	_ = cmd.MarkFlagRequired("species")
	_ = cmd.MarkFlagRequired("english-name")
	return cmd
}

func deleteCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return errors.Newf("invalid bird ID %q", args[0]).
					Component("cmd").
					Category(errors.CategoryValidation).
					Build()
			}

			store, err := datastore.Open(settings, nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Repo.Delete(cmd.Context(), uint(id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d\n", id)
			return nil
		},
	}
}

func seedCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample records that are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := datastore.Open(settings, nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := datastore.SeedSamples(store.DB().WithContext(cmd.Context()))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d %s\n", n, plural(n))
			return nil
		},
	}
}
