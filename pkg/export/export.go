// Package export provides functionality to export conversations to different
// formats. Supported formats include JSON, Markdown, and HTML.
package export

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"strings"
	"time"

	"github.com/deagent-io/deagent/pkg/history"
)

// Format represents the export format type.
type Format string

const (
	// FormatJSON exports the conversation as JSON
	FormatJSON Format = "json"
	// FormatMarkdown exports the conversation as Markdown
	FormatMarkdown Format = "markdown"
	// FormatHTML exports the conversation as HTML
	FormatHTML Format = "html"
)

// ExportOptions contains options for exporting conversations.
type ExportOptions struct {
	// Format specifies the export format (json, markdown, html)
	Format Format
	// IncludeSteps includes the agent activity under each answer
	IncludeSteps bool
	// IncludeTimestamps includes turn timestamps in the export
	IncludeTimestamps bool
	// Title is an optional title for the exported conversation
	Title string
}

// Exporter handles conversation exports to different formats.
type Exporter struct {
	options ExportOptions
}

// NewExporter creates a new Exporter with the given options.
func NewExporter(options ExportOptions) *Exporter {
	return &Exporter{
		options: options,
	}
}

// Export writes the conversation turns to the writer in the configured format.
func (e *Exporter) Export(turns []history.Turn, writer io.Writer) error {
	switch e.options.Format {
	case FormatJSON:
		return e.exportJSON(turns, writer)
	case FormatMarkdown:
		return e.exportMarkdown(turns, writer)
	case FormatHTML:
		return e.exportHTML(turns, writer)
	default:
		return fmt.Errorf("unsupported export format: %s", e.options.Format)
	}
}

// exportJSON exports turns as JSON.
func (e *Exporter) exportJSON(turns []history.Turn, writer io.Writer) error {
	output := struct {
		Title      string         `json:"title,omitempty"`
		ExportedAt string         `json:"exported_at"`
		Turns      []history.Turn `json:"turns"`
		Summary    *ExportSummary `json:"summary"`
	}{
		Title:      e.options.Title,
		ExportedAt: time.Now().Format(time.RFC3339),
		Turns:      turns,
		Summary:    calculateSummary(turns),
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// exportMarkdown exports turns as Markdown.
func (e *Exporter) exportMarkdown(turns []history.Turn, writer io.Writer) error {
	var sb strings.Builder

	if e.options.Title != "" {
		sb.WriteString("# ")
		sb.WriteString(e.options.Title)
		sb.WriteString("\n\n")
	}

	sb.WriteString("*Exported: ")
	sb.WriteString(time.Now().Format("2006-01-02 15:04:05"))
	sb.WriteString("*\n\n")

	summary := calculateSummary(turns)
	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Turns**: %d\n", summary.TotalTurns))
	sb.WriteString(fmt.Sprintf("- **Questions**: %d\n", summary.UserTurns))
	sb.WriteString(fmt.Sprintf("- **Agents involved**: %d\n", summary.UniqueAgents))
	sb.WriteString(fmt.Sprintf("- **Failed turns**: %d\n", summary.FailedTurns))
	sb.WriteString("\n---\n\n")

	sb.WriteString("## Conversation\n\n")

	for _, t := range turns {
		if t.Pending {
			continue
		}

		switch {
		case t.Failed:
			sb.WriteString("### [ERROR]")
		case t.Role == history.RoleUser:
			sb.WriteString("### You")
		default:
			sb.WriteString("### Agents")
		}

		if e.options.IncludeTimestamps {
			sb.WriteString(" - ")
			sb.WriteString(time.Unix(t.Timestamp, 0).Format("15:04:05"))
		}

		sb.WriteString("\n\n")

		if e.options.IncludeSteps && len(t.Steps) > 0 {
			for _, s := range t.Steps {
				sb.WriteString(fmt.Sprintf("- %s **%s** (%s)", s.Icon, s.Agent, s.Status))
				if s.Action != "" {
					sb.WriteString(": " + s.Action)
				}
				sb.WriteString("\n")
				for _, d := range s.DisplayDetails() {
					sb.WriteString("  - " + d + "\n")
				}
			}
			sb.WriteString("\n")
		}

		sb.WriteString(t.Content)
		sb.WriteString("\n\n")

		if meta := markdownMetadata(t); meta != "" {
			sb.WriteString("*" + meta + "*\n\n")
		}

		sb.WriteString("---\n\n")
	}

	_, err := writer.Write([]byte(sb.String()))
	return err
}

// markdownMetadata builds the italic metadata line under an answer.
func markdownMetadata(t history.Turn) string {
	if t.Failed || t.Role != history.RoleAssistant {
		return ""
	}

	var parts []string
	md := t.Metadata

	if md.Intent != "" {
		if md.IntentConfidence != nil {
			parts = append(parts, fmt.Sprintf("Intent: %s (%.0f%%)", md.Intent, *md.IntentConfidence*100))
		} else {
			parts = append(parts, "Intent: "+md.Intent)
		}
	}
	if n := len(md.RAGDocuments); n > 0 {
		parts = append(parts, fmt.Sprintf("Documents: %d", n))
	}
	if md.Validation.Passed {
		parts = append(parts, "Validation: passed")
	} else {
		parts = append(parts, "Validation: failed")
	}

	return strings.Join(parts, " | ")
}

// exportHTML exports turns as HTML.
func (e *Exporter) exportHTML(turns []history.Turn, writer io.Writer) error {
	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("  <meta charset=\"UTF-8\">\n")
	sb.WriteString("  <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")

	title := e.options.Title
	if title == "" {
		title = "deagent Conversation"
	}
	sb.WriteString(fmt.Sprintf("  <title>%s</title>\n", html.EscapeString(title)))

	sb.WriteString("  <style>\n")
	sb.WriteString(getCSS())
	sb.WriteString("  </style>\n")
	sb.WriteString("</head>\n")
	sb.WriteString("<body>\n")

	sb.WriteString("  <div class=\"container\">\n")
	sb.WriteString("    <header>\n")
	sb.WriteString(fmt.Sprintf("      <h1>%s</h1>\n", html.EscapeString(title)))
	sb.WriteString(fmt.Sprintf("      <p class=\"export-date\">Exported: %s</p>\n", time.Now().Format("2006-01-02 15:04:05")))
	sb.WriteString("    </header>\n\n")

	summary := calculateSummary(turns)
	sb.WriteString("    <div class=\"summary\">\n")
	sb.WriteString("      <h2>Summary</h2>\n")
	sb.WriteString("      <div class=\"summary-stats\">\n")
	sb.WriteString(fmt.Sprintf("        <div class=\"stat\"><strong>Turns:</strong> %d</div>\n", summary.TotalTurns))
	sb.WriteString(fmt.Sprintf("        <div class=\"stat\"><strong>Questions:</strong> %d</div>\n", summary.UserTurns))
	sb.WriteString(fmt.Sprintf("        <div class=\"stat\"><strong>Agents involved:</strong> %d</div>\n", summary.UniqueAgents))
	sb.WriteString(fmt.Sprintf("        <div class=\"stat\"><strong>Failed turns:</strong> %d</div>\n", summary.FailedTurns))
	sb.WriteString("      </div>\n")
	sb.WriteString("    </div>\n\n")

	sb.WriteString("    <div class=\"conversation\">\n")
	sb.WriteString("      <h2>Conversation</h2>\n")

	for _, t := range turns {
		if t.Pending {
			continue
		}

		roleClass := "message-assistant"
		label := "Agents"
		switch {
		case t.Failed:
			roleClass = "message-error"
			label = "ERROR"
		case t.Role == history.RoleUser:
			roleClass = "message-user"
			label = "You"
		}

		sb.WriteString(fmt.Sprintf("      <div class=\"message %s\">\n", roleClass))

		sb.WriteString("        <div class=\"message-header\">\n")
		sb.WriteString(fmt.Sprintf("          <span class=\"role-name\">%s</span>\n", html.EscapeString(label)))
		if e.options.IncludeTimestamps {
			timestamp := time.Unix(t.Timestamp, 0).Format("15:04:05")
			sb.WriteString(fmt.Sprintf("          <span class=\"timestamp\">%s</span>\n", timestamp))
		}
		sb.WriteString("        </div>\n")

		if e.options.IncludeSteps && len(t.Steps) > 0 {
			sb.WriteString("        <ul class=\"steps\">\n")
			for _, s := range t.Steps {
				sb.WriteString(fmt.Sprintf("          <li>%s <strong>%s</strong> (%s)",
					html.EscapeString(s.Icon), html.EscapeString(s.Agent), html.EscapeString(string(s.Status))))
				if s.Action != "" {
					sb.WriteString(": " + html.EscapeString(s.Action))
				}
				sb.WriteString("</li>\n")
			}
			sb.WriteString("        </ul>\n")
		}

		sb.WriteString("        <div class=\"message-content\">\n")
		content := html.EscapeString(t.Content)
		content = strings.ReplaceAll(content, "\n", "<br>")
		sb.WriteString("          ")
		sb.WriteString(content)
		sb.WriteString("\n")
		sb.WriteString("        </div>\n")

		if meta := markdownMetadata(t); meta != "" {
			sb.WriteString("        <div class=\"message-metrics\">\n")
			sb.WriteString("          " + html.EscapeString(meta) + "\n")
			sb.WriteString("        </div>\n")
		}

		sb.WriteString("      </div>\n\n")
	}

	sb.WriteString("    </div>\n")
	sb.WriteString("  </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	_, err := writer.Write([]byte(sb.String()))
	return err
}

// ExportSummary contains summary statistics for an exported conversation.
type ExportSummary struct {
	TotalTurns   int `json:"total_turns"`
	UserTurns    int `json:"user_turns"`
	UniqueAgents int `json:"unique_agents"`
	FailedTurns  int `json:"failed_turns"`
}

// calculateSummary computes summary statistics from turns.
func calculateSummary(turns []history.Turn) *ExportSummary {
	summary := &ExportSummary{}
	agents := make(map[string]bool)

	for _, t := range turns {
		if t.Pending {
			continue
		}
		summary.TotalTurns++
		if t.Role == history.RoleUser {
			summary.UserTurns++
		}
		if t.Failed {
			summary.FailedTurns++
		}
		for _, s := range t.Steps {
			agents[s.Agent] = true
		}
	}

	summary.UniqueAgents = len(agents)
	return summary
}

// getCSS returns the CSS styles for HTML export.
func getCSS() string {
	return `    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, Cantarell, sans-serif;
      line-height: 1.6;
      color: #333;
      max-width: 100%;
      margin: 0;
      padding: 0;
      background-color: #f5f5f5;
    }
    .container {
      max-width: 900px;
      margin: 0 auto;
      padding: 20px;
      background-color: white;
      box-shadow: 0 0 10px rgba(0,0,0,0.1);
    }
    header {
      border-bottom: 2px solid #e0e0e0;
      padding-bottom: 20px;
      margin-bottom: 30px;
    }
    h1 {
      margin: 0;
      color: #2c3e50;
    }
    h2 {
      color: #34495e;
      border-bottom: 1px solid #e0e0e0;
      padding-bottom: 10px;
    }
    .export-date {
      color: #7f8c8d;
      font-style: italic;
      margin: 10px 0 0 0;
    }
    .summary {
      background-color: #ecf0f1;
      padding: 20px;
      border-radius: 8px;
      margin-bottom: 30px;
    }
    .summary-stats {
      display: grid;
      grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
      gap: 15px;
      margin-top: 15px;
    }
    .stat {
      background-color: white;
      padding: 10px;
      border-radius: 4px;
      box-shadow: 0 1px 3px rgba(0,0,0,0.1);
    }
    .conversation {
      margin-top: 30px;
    }
    .message {
      margin-bottom: 25px;
      padding: 15px;
      border-radius: 8px;
      background-color: #fff;
      border-left: 4px solid #3498db;
      box-shadow: 0 1px 3px rgba(0,0,0,0.1);
    }
    .message-user {
      border-left-color: #27ae60;
    }
    .message-error {
      border-left-color: #e74c3c;
      background-color: #fdf3f2;
    }
    .message-header {
      display: flex;
      justify-content: space-between;
      align-items: center;
      margin-bottom: 10px;
      padding-bottom: 8px;
      border-bottom: 1px solid #e0e0e0;
    }
    .role-name {
      font-weight: bold;
      color: #2980b9;
      font-size: 1.1em;
    }
    .timestamp {
      color: #95a5a6;
      font-size: 0.9em;
    }
    .steps {
      color: #7f8c8d;
      font-size: 0.9em;
      margin: 5px 0;
    }
    .message-content {
      margin: 10px 0;
      line-height: 1.8;
    }
    .message-metrics {
      margin-top: 10px;
      padding-top: 10px;
      border-top: 1px solid #e0e0e0;
      font-size: 0.85em;
      color: #7f8c8d;
      font-style: italic;
    }
    @media print {
      .container {
        box-shadow: none;
      }
      .message {
        break-inside: avoid;
      }
    }`
}
