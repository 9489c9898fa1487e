package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/netmonitor/semantic-index/internal/indexing"
	"github.com/netmonitor/semantic-index/internal/query"
)

var (
	indexRecreate bool
	indexFile     string
	queryMode     string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index and query artefact data",
	Long:  `Bulk-index data directories, index a single file, or run an ad-hoc query.`,
}

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Bulk-index every artefact subdirectory under the data directory",
	Example: `  # Index everything, creating indexes that don't exist yet
  semanticidxctl index create

  # Drop and recreate every index before indexing
  semanticidxctl index create --recreate`,
	RunE: runIndexCreate,
}

var indexCreateFileCmd = &cobra.Command{
	Use:   "create-file <index-name>",
	Short: "Index a single JSON file against an already-provisioned index",
	Args:  cobra.ExactArgs(1),
	Example: `  semanticidxctl index create-file documents --file ./data/documents/new.json`,
	RunE: runIndexCreateFile,
}

var indexQueryCmd = &cobra.Command{
	Use:   "query <index-name> <text>",
	Short: "Run a k-NN query against an index",
	Args:  cobra.ExactArgs(2),
	Example: `  semanticidxctl index query documents "how do I rotate the API key"
  semanticidxctl index query documents "rotate api key" --mode question`,
	RunE: runIndexQuery,
}

func init() {
	indexCreateCmd.Flags().BoolVar(&indexRecreate, "recreate", false, "drop and recreate each index before indexing")
	indexCreateFileCmd.Flags().StringVar(&indexFile, "file", "", "path to the JSON file to index (required)")
	_ = indexCreateFileCmd.MarkFlagRequired("file")
	indexQueryCmd.Flags().StringVar(&queryMode, "mode", "", "single-field vector search mode (e.g. question, summary); empty runs a multi-field weighted search")

	indexCmd.AddCommand(indexCreateCmd)
	indexCmd.AddCommand(indexCreateFileCmd)
	indexCmd.AddCommand(indexQueryCmd)
}

func runIndexCreate(cmd *cobra.Command, args []string) error {
	tk, err := newToolkit()
	if err != nil {
		return err
	}
	defer tk.Close()

	result, err := tk.indexing.BulkIndex(context.Background(), indexing.BulkIndexRequest{
		RecreateIndex: indexRecreate,
	})
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}

	return printIndexResult(result)
}

func runIndexCreateFile(cmd *cobra.Command, args []string) error {
	tk, err := newToolkit()
	if err != nil {
		return err
	}
	defer tk.Close()

	result, err := tk.indexing.IndexFile(context.Background(), indexing.SingleFileIndexRequest{
		IndexName: args[0],
		JSONFile:  indexFile,
	})
	if err != nil {
		return fmt.Errorf("index file: %w", err)
	}

	return printIndexResult(result)
}

func runIndexQuery(cmd *cobra.Command, args []string) error {
	tk, err := newToolkit()
	if err != nil {
		return err
	}
	defer tk.Close()

	results, err := tk.query.Query(context.Background(), query.Request{
		IndexName:        args[0],
		QueryText:        args[1],
		VectorSearchMode: queryMode,
	})
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}

	if outputJSON {
		return PrintJSON(results)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{Truncate(r.Input, 60), Truncate(r.Output, 60)})
	}
	PrintTable([]string{"INPUT", "OUTPUT"}, rows)
	return nil
}

func printIndexResult(result *indexing.Result) error {
	if outputJSON {
		return PrintJSON(result)
	}

	PrintKeyValue(map[string]string{
		"Success": fmt.Sprintf("%t", result.Success),
		"Message": result.Message,
		"Indexed": fmt.Sprintf("%d", len(result.IndexedIDs)),
		"Failed":  fmt.Sprintf("%d", len(result.FailedIDs)),
	})
	for _, d := range result.Diagnostics {
		fmt.Println("  -", d)
	}
	return nil
}
