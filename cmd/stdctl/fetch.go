package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nainya/standardstore/pkg/cspapi"
	"github.com/nainya/standardstore/pkg/standards"
)

var (
	searchFlag   string
	typeFlag     string
	refreshFlag  bool
	setFilter    cspapi.SetFilter
	levelsFlag   string
	assumeYes    bool
	listOnlyFlag bool
)

var jurisdictionsCmd = &cobra.Command{
	Use:   "jurisdictions",
	Short: "List jurisdictions, optionally filtered by title or type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := state.APIClient().Jurisdictions(cmd.Context(), cspapi.JurisdictionFilter{
			Search: searchFlag,
			Type:   typeFlag,
		}, refreshFlag)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tTYPE")
		for _, j := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\n", j.ID, j.Title, j.Type)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d jurisdiction(s)\n", len(list))
		return nil
	},
}

var jurisdictionDetailsCmd = &cobra.Command{
	Use:   "jurisdiction-details JURISDICTION_ID",
	Short: "Show a jurisdiction and its standard sets",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		details, err := state.APIClient().JurisdictionDetails(cmd.Context(), args[0], refreshFlag)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s) - %s\n\n", details.Title, details.Type, details.ID)
		return printSetRefs(cspapi.MatchingSets(details, cspapi.SetFilter{}))
	},
}

var downloadSetsCmd = &cobra.Command{
	Use:   "download-sets JURISDICTION_ID",
	Short: "Download the standard sets of a jurisdiction that match the filters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := state.APIClient()
		filter := setFilter
		if levelsFlag != "" {
			filter.EducationLevels = strings.Split(levelsFlag, ",")
		}

		details, err := client.JurisdictionDetails(cmd.Context(), args[0], refreshFlag)
		if err != nil {
			return err
		}
		refs := cspapi.MatchingSets(details, filter)
		if len(refs) == 0 {
			fmt.Println("No standard sets match the filters.")
			return nil
		}
		if err := printSetRefs(refs); err != nil {
			return err
		}
		if listOnlyFlag {
			return nil
		}
		if !assumeYes && !confirm(fmt.Sprintf("Download %d standard set(s)?", len(refs))) {
			fmt.Println("Aborted.")
			return nil
		}

		ids, err := client.DownloadSets(cmd.Context(), args[0], filter, refreshFlag)
		fmt.Printf("Downloaded %d of %d standard set(s) to %s\n", len(ids), len(refs), state.Store.Root())
		return err
	},
}

func printSetRefs(refs []standards.StandardSetReference) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSUBJECT\tTITLE\tLEVELS\tSTATUS\tVALID")
	for _, r := range refs {
		status := r.Document.PublicationStatus
		if status == "" {
			status = "Unknown"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Subject, r.Title, strings.Join(r.EducationLevels, ","), status, r.Document.Valid)
	}
	return w.Flush()
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func init() {
	jurisdictionsCmd.Flags().StringVarP(&searchFlag, "search", "s", "", "case-insensitive title substring")
	jurisdictionsCmd.Flags().StringVarP(&typeFlag, "type", "t", "", "jurisdiction type: school, organization, state, nation")
	jurisdictionsCmd.Flags().BoolVar(&refreshFlag, "refresh", false, "bypass the local cache")

	jurisdictionDetailsCmd.Flags().BoolVar(&refreshFlag, "refresh", false, "bypass the local cache")

	f := downloadSetsCmd.Flags()
	f.StringVar(&levelsFlag, "education-levels", "", "comma-separated grade levels, e.g. 03,04,05")
	f.StringVar(&setFilter.PublicationStatus, "publication-status", "", "publication status, e.g. Published")
	f.StringVar(&setFilter.ValidYear, "valid-year", "", "exact valid year, e.g. 2012")
	f.StringVar(&setFilter.Title, "title", "", "case-insensitive title substring")
	f.StringVar(&setFilter.Subject, "subject", "", "case-insensitive subject substring")
	f.BoolVar(&refreshFlag, "refresh", false, "bypass the local cache")
	f.BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
	f.BoolVar(&listOnlyFlag, "dry-run", false, "list matching sets without downloading")

	rootCmd.AddCommand(jurisdictionsCmd, jurisdictionDetailsCmd, downloadSetsCmd)
}
