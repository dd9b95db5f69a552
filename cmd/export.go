package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deagent-io/deagent/pkg/export"
	"github.com/deagent-io/deagent/pkg/history"
)

var (
	exportFormat string
	exportOutput string
	exportTitle  string
)

var exportCmd = &cobra.Command{
	Use:   "export <transcript.log>",
	Short: "Convert a JSON transcript to another format",
	Long: `Convert a saved JSON chat transcript to Markdown, HTML, or JSON.
Transcripts are written during chat sessions when logging.transcripts is
enabled with logging.transcript_format set to "json".`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "markdown", "Output format: json, markdown, or html")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().StringVar(&exportTitle, "title", "", "Document title")
}

func runExport(cmd *cobra.Command, args []string) error {
	turns, err := readTranscript(args[0])
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return fmt.Errorf("no turns found in %s (is it a JSON transcript?)", args[0])
	}

	out := os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	exporter := export.NewExporter(export.ExportOptions{
		Format:            export.Format(exportFormat),
		Title:             exportTitle,
		IncludeSteps:      true,
		IncludeTimestamps: true,
	})
	if err := exporter.Export(turns, out); err != nil {
		return err
	}

	if exportOutput != "" {
		fmt.Printf("✅ Exported %d turns to %s\n", len(turns), exportOutput)
	}
	return nil
}

// readTranscript parses a JSON transcript: one turn per line, with the
// header and footer lines skipped.
func readTranscript(path string) ([]history.Turn, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	var turns []history.Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}

		var t history.Turn
		if err := json.Unmarshal([]byte(line), &t); err != nil {
			return nil, fmt.Errorf("invalid transcript line: %w", err)
		}
		turns = append(turns, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	return turns, nil
}
