package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/deagent-io/deagent/pkg/config"
)

var docContext string

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage the backend knowledge base",
	Long: `Inspect and extend the knowledge base the agent team consults when
answering questions. Documents are grouped by context, matching the
focus topics of the chat interface.`,
}

var docsAddCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Upload a document to the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsAdd,
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge-base documents",
	RunE:  runDocsList,
}

var docsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge-base statistics",
	RunE:  runDocsStats,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge-base statistics",
	RunE:  runDocsStats,
}

func init() {
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(statsCmd)
	docsCmd.AddCommand(docsAddCmd)
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsStatsCmd)

	docsAddCmd.Flags().StringVarP(&docContext, "context", "c", "general", "Document context (e.g. a focus topic ID)")
}

func runDocsAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(configPath())
	if err != nil {
		return err
	}
	applyLogLevel(cfg.Logging.Level)

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	c := newBackendClient(cfg)
	resp, err := c.AddDocument(cmd.Context(), string(data), filepath.Base(path), docContext)
	if err != nil {
		return err
	}

	name := resp.DocumentName
	if name == "" {
		name = filepath.Base(path)
	}
	fmt.Printf("✅ Uploaded %s (context: %s)\n", name, docContext)
	return nil
}

func runDocsList(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(configPath())
	if err != nil {
		return err
	}
	applyLogLevel(cfg.Logging.Level)

	c := newBackendClient(cfg)
	resp, err := c.GetDocuments(cmd.Context())
	if err != nil {
		return err
	}

	if len(resp.Documents) == 0 {
		fmt.Println("No documents in the knowledge base yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCONTEXT\tSIZE")
	for _, d := range resp.Documents {
		size := "-"
		if d.Size > 0 {
			size = fmt.Sprintf("%d", d.Size)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Context, size)
	}
	return w.Flush()
}

func runDocsStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(configPath())
	if err != nil {
		return err
	}
	applyLogLevel(cfg.Logging.Level)

	c := newBackendClient(cfg)
	resp, err := c.GetStats(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("📚 Knowledge base: %d documents\n", resp.TotalDocuments)
	if len(resp.ByContext) == 0 {
		return nil
	}

	contexts := make([]string, 0, len(resp.ByContext))
	for ctx := range resp.ByContext {
		contexts = append(contexts, ctx)
	}
	sort.Strings(contexts)

	for _, ctx := range contexts {
		fmt.Printf("   %s: %d\n", ctx, resp.ByContext[ctx])
	}
	return nil
}
