// Package taxonomy provides the eBird taxonomy import command.
package taxonomy

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hellobirdie/hellobirdie/internal/conf"
	"github.com/hellobirdie/hellobirdie/internal/datastore"
	"github.com/hellobirdie/hellobirdie/internal/ebird"
)

// Command creates the taxonomy command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Work with the eBird taxonomy",
	}
	cmd.AddCommand(importCommand(settings))
	return cmd
}

func importCommand(settings *conf.Settings) *cobra.Command {
	var opts ebird.ImportOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import species records from the eBird taxonomy",
		Long: `Fetch the eBird taxonomy and upsert every species into the record store.
Records are matched on genus, species and subspecies; matches get the eBird
English name and family.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Locale == "" {
				opts.Locale = settings.EBird.Locale
			}

			client, err := ebird.NewClient(ebird.ConfigFromSettings(&settings.EBird))
			if err != nil {
				return err
			}
			defer client.Close()

			store, err := datastore.Open(settings, nil)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			result, err := ebird.NewImporter(client, store.Repo, nil).Import(cmd.Context(), opts)
			if err != nil {
				return err
			}

			prefix := ""
			if opts.DryRun {
				prefix = "(dry run) "
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"%sfetched %d, created %d, updated %d, skipped %d, failed %d in %s\n",
				prefix, result.Fetched, result.Created, result.Updated, result.Skipped, result.Failed,
				result.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Locale, "locale", "", "Locale for common names (default: ebird.locale)")
	cmd.Flags().StringSliceVar(&opts.Families, "family", nil, "Only import these families, e.g. Strigidae (repeatable)")
	cmd.Flags().StringSliceVar(&opts.Categories, "category", nil, "eBird categories to import (default: species,issf)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of entries to write (0 imports all)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Count what would be imported without writing")
	return cmd
}
