package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nainya/standardstore/pkg/index"
	"github.com/nainya/standardstore/pkg/processor"
	"github.com/nainya/standardstore/pkg/record"
)

var (
	uploadSet   string
	forceUpload bool
	dryRun      bool
	batchSize   int
	maxResults  int
	gradeFlag   string
)

var indexInitCmd = &cobra.Command{
	Use:   "index-init",
	Short: "Create the vector index schema if it does not exist",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := state.OpenIndex()
		if err != nil {
			return err
		}
		defer ix.Close()

		created, err := ix.Init(cmd.Context())
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("Created index %q at %s\n", state.Config.Index.Name, state.Config.Index.Path)
		} else {
			fmt.Printf("Index %q already exists at %s\n", state.Config.Index.Name, state.Config.Index.Path)
		}
		st, err := ix.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Namespace %q: %d records\n", ix.Namespace(), st.Namespaces[ix.Namespace()])
		return nil
	},
}

var indexUploadCmd = &cobra.Command{
	Use:   "index-upload",
	Short: "Upload processed standard sets to the vector index",
	Long: `Uploads processed standard sets to the vector index. Sets that are
not processed yet are processed first. Sets already carrying an upload
marker are skipped unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := uploadCandidates()
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("Nothing to upload.")
			return nil
		}

		var ix *index.Index
		var up *index.Uploader
		if !dryRun {
			ix, err = state.OpenIndex()
			if err != nil {
				return err
			}
			defer ix.Close()
			up = state.Uploader(ix, batchSize)
		}

		var errs []error
		for _, id := range ids {
			set, err := processedSet(id)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if dryRun {
				fmt.Printf("%s: would upload %d records\n", id, len(set.Records))
				continue
			}
			res, err := up.Upload(cmd.Context(), set.Records)
			if err != nil {
				errs = append(errs, fmt.Errorf("upload %s: %w", id, err))
				continue
			}
			if err := state.Store.MarkUploaded(id, time.Now()); err != nil {
				errs = append(errs, err)
				continue
			}
			fmt.Printf("%s: uploaded %d records in %d batch(es)\n", id, res.Records, res.Batches)
		}
		return errors.Join(errs...)
	},
}

// uploadCandidates returns the sets index-upload should consider.
func uploadCandidates() ([]string, error) {
	if uploadSet != "" {
		if !forceUpload && state.Store.IsUploaded(uploadSet) {
			fmt.Printf("%s is already uploaded; use --force to upload again\n", uploadSet)
			return nil, nil
		}
		return []string{uploadSet}, nil
	}

	sets, err := state.Store.ListSets()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, s := range sets {
		if s.Uploaded && !forceUpload {
			continue
		}
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// processedSet loads the records of a set, processing it first when needed.
func processedSet(id string) (*record.ProcessedSet, error) {
	set, err := state.Store.LoadProcessed(id)
	if err == nil {
		return set, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	res, err := state.Store.ProcessSet(id, processor.Options{})
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", id, err)
	}
	return res.ProcessedSet(), nil
}

var searchCmd = &cobra.Command{
	Use:   "search ACTIVITY...",
	Short: "Find standards relevant to a learning activity",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := state.OpenIndex()
		if err != nil {
			return err
		}
		defer ix.Close()

		resp := state.Tools(ix).FindRelevantStandards(cmd.Context(), strings.Join(args, " "), maxResults, gradeFlag)
		return printResponse(resp.JSON(), resp.Success)
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup STANDARD_ID",
	Short: "Show one standard by its GUID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := state.OpenIndex()
		if err != nil {
			return err
		}
		defer ix.Close()

		resp := state.Tools(ix).GetStandardDetails(cmd.Context(), args[0])
		return printResponse(resp.JSON(), resp.Success)
	},
}

var statsCmd = &cobra.Command{
	Use:   "index-stats",
	Short: "Show record counts of the vector index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := state.OpenIndex()
		if err != nil {
			return err
		}
		defer ix.Close()

		st, err := ix.Stats(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	},
}

func printResponse(text string, ok bool) error {
	fmt.Println(text)
	if !ok {
		return errors.New("tool call did not succeed")
	}
	return nil
}

func init() {
	f := indexUploadCmd.Flags()
	f.StringVar(&uploadSet, "set", "", "upload only this standard set")
	f.BoolVar(&forceUpload, "force", false, "upload sets that already carry an upload marker")
	f.BoolVar(&dryRun, "dry-run", false, "show what would be uploaded")
	f.IntVar(&batchSize, "batch-size", 0, "records per upsert batch (default from config)")

	searchCmd.Flags().IntVarP(&maxResults, "max", "n", 0, "maximum results, 1-20 (default from config)")
	searchCmd.Flags().StringVarP(&gradeFlag, "grade", "g", "", "grade filter: K, 01-12 or 09-12")

	rootCmd.AddCommand(indexInitCmd, indexUploadCmd, statsCmd, searchCmd, lookupCmd)
}
