package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nainya/standardstore/pkg/processor"
	"github.com/nainya/standardstore/pkg/standards"
)

var (
	failFast     bool
	allowPartial bool
	inspectPath  string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded standard sets with their processing and upload state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sets, err := state.Store.ListSets()
		if err != nil {
			return err
		}
		if len(sets) == 0 {
			fmt.Println("No standard sets downloaded yet. Use download-sets first.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tJURISDICTION\tSUBJECT\tTITLE\tLEVELS\tSTATUS\tPROCESSED\tUPLOADED")
		for _, s := range sets {
			uploaded := "no"
			if s.Uploaded {
				uploaded = s.UploadedAt.Local().Format(time.DateTime)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				s.ID, s.Jurisdiction, s.Subject, s.Title, strings.Join(s.EducationLevels, ","),
				s.PublicationStatus, yesNo(s.Processed), uploaded)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d standard set(s)\n", len(sets))
		return nil
	},
}

var processCmd = &cobra.Command{
	Use:   "process SET_ID...",
	Short: "Flatten downloaded standard sets into processed.json records",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := processor.Options{FailFast: failFast, AllowPartial: allowPartial}
		var errs []error
		for _, id := range args {
			if err := processOne(id, opts); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	},
}

func processOne(id string, opts processor.Options) error {
	start := time.Now()
	res, err := state.Store.ProcessSet(id, opts)
	if res != nil {
		state.Log.ProcessorLogger(id).LogProcessRun(time.Since(start), res.Summary.Succeeded, res.Summary.Failed, res.Summary.FailedIDs)
		state.Metrics.RecordProcessRun(res.Summary.Succeeded, res.Summary.Failed, time.Since(start))
		for _, f := range res.Failures {
			fmt.Printf("  %s: %v\n", id, f)
		}
	}
	if err != nil {
		return fmt.Errorf("process %s: %w", id, err)
	}
	fmt.Printf("%s: %d records (%d leaves) -> %s\n", id, len(res.Records), res.Leaves, state.Store.ProcessedPath(id))
	return nil
}

var inspectCmd = &cobra.Command{
	Use:   "inspect SET_ID",
	Short: "Evaluate a JSONPath expression against a downloaded standard set",
	Example: `  stdctl inspect 5A0B0F4E --path '$.data.standards.*.statementNotation'
  stdctl inspect 5A0B0F4E --path '$.data.document'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := state.Store.ReadRaw(args[0])
		if err != nil {
			return err
		}
		matches, err := standards.QueryDocument(data, inspectPath)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func init() {
	processCmd.Flags().BoolVar(&failFast, "fail-fast", false, "abort a set on its first invalid node")
	processCmd.Flags().BoolVar(&allowPartial, "allow-partial", false, "save sets even when some nodes failed")

	inspectCmd.Flags().StringVarP(&inspectPath, "path", "p", "$.data.title", "JSONPath expression")

	rootCmd.AddCommand(listCmd, processCmd, inspectCmd)
}
