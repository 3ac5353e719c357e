package main

import (
	"encoding/json"
	"strings"

	"docgen-workers/internal/pipeline/classifier"

	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <message>",
	Short: "Classify a request without generating a document",
	Long: `Run the intent classifier on a message and print the result as JSON.
No configuration or network access is needed.

Examples:
  docgen classify "please register John Smith for Villa 7"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	c, err := classifier.New()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(c.Classify(strings.Join(args, " ")))
}
