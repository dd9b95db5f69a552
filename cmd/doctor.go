package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/deagent-io/deagent/pkg/config"
)

type DoctorCheck struct {
	Name    string `json:"name"`
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

type DoctorOutput struct {
	Checks []DoctorCheck `json:"checks"`
	Ready  bool          `json:"ready"`
}

var doctorJSON bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and backend connectivity",
	Long:  `Doctor checks the configuration file, the backend connection, and the transcript directory, and reports anything that needs fixing before chatting.`,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Output results in JSON format")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	checks := []DoctorCheck{}

	cfg, err := config.LoadOrDefault(configPath())
	if err != nil {
		checks = append(checks, DoctorCheck{
			Name:    "Configuration",
			Status:  false,
			Message: err.Error(),
		})
		return printDoctor(checks)
	}
	checks = append(checks, DoctorCheck{
		Name:    "Configuration",
		Status:  true,
		Message: configPath(),
	})

	if cfg.Backend.Endpoint == "" {
		checks = append(checks, DoctorCheck{
			Name:    "Backend endpoint",
			Status:  false,
			Message: "not set; configure backend.endpoint or DEAGENT_ENDPOINT",
		})
	} else {
		checks = append(checks, DoctorCheck{
			Name:    "Backend endpoint",
			Status:  true,
			Message: cfg.Backend.Endpoint,
		})
		checks = append(checks, checkBackend(cmd.Context(), cfg))
	}

	if cfg.Backend.APIKey == "" {
		checks = append(checks, DoctorCheck{
			Name:    "API key",
			Status:  false,
			Message: "not set; configure backend.api_key or DEAGENT_API_KEY",
		})
	} else {
		checks = append(checks, DoctorCheck{
			Name:    "API key",
			Status:  true,
			Message: "configured",
		})
	}

	checks = append(checks, checkTranscriptDir(cfg))

	if cfg.Access.Key != "" {
		checks = append(checks, DoctorCheck{
			Name:    "Access gate",
			Status:  true,
			Message: "enabled",
		})
	}

	return printDoctor(checks)
}

// checkBackend probes the backend with a stats request.
func checkBackend(ctx context.Context, cfg *config.Config) DoctorCheck {
	c := newBackendClient(cfg)

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats, err := c.GetStats(probeCtx)
	if err != nil {
		return DoctorCheck{
			Name:    "Backend connection",
			Status:  false,
			Message: err.Error(),
		}
	}
	return DoctorCheck{
		Name:    "Backend connection",
		Status:  true,
		Message: fmt.Sprintf("reachable, %d knowledge-base documents", stats.TotalDocuments),
	}
}

func checkTranscriptDir(cfg *config.Config) DoctorCheck {
	if !cfg.Logging.TranscriptsEnabled() {
		return DoctorCheck{
			Name:    "Transcripts",
			Status:  true,
			Message: "disabled",
		}
	}

	if err := os.MkdirAll(cfg.Logging.TranscriptDir, 0755); err != nil {
		return DoctorCheck{
			Name:    "Transcripts",
			Status:  false,
			Message: fmt.Sprintf("cannot create %s: %v", cfg.Logging.TranscriptDir, err),
		}
	}
	return DoctorCheck{
		Name:    "Transcripts",
		Status:  true,
		Message: cfg.Logging.TranscriptDir,
	}
}

func printDoctor(checks []DoctorCheck) error {
	ready := true
	for _, c := range checks {
		if !c.Status {
			ready = false
		}
	}

	if doctorJSON {
		out := DoctorOutput{Checks: checks, Ready: ready}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("🩺 deagent doctor")
	fmt.Println()
	for _, c := range checks {
		icon := "✅"
		if !c.Status {
			icon = "❌"
		}
		fmt.Printf("  %s %-20s %s\n", icon, c.Name, c.Message)
	}
	fmt.Println()
	if ready {
		fmt.Println("Ready to chat. Run 'deagent' to start.")
	} else {
		fmt.Println("Fix the items above, then run 'deagent doctor' again.")
	}
	return nil
}
