package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/deagent-io/deagent/internal/version"
	"github.com/deagent-io/deagent/pkg/auth"
	"github.com/deagent-io/deagent/pkg/client"
	"github.com/deagent-io/deagent/pkg/config"
	"github.com/deagent-io/deagent/pkg/log"
	"github.com/deagent-io/deagent/pkg/logger"
	"github.com/deagent-io/deagent/pkg/metrics"
	"github.com/deagent-io/deagent/pkg/middleware"
	"github.com/deagent-io/deagent/pkg/ratelimit"
	"github.com/deagent-io/deagent/pkg/session"
	"github.com/deagent-io/deagent/pkg/tui"
)

var (
	chatTopic        string
	chatInstructions string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Open the interactive chat interface. Conversations run against the
configured backend; pick a focus topic from the sidebar to steer the
agent team.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatTopic, "topic", "t", "", "Initial focus topic ID")
	chatCmd.Flags().StringVar(&chatInstructions, "instructions", "", "Custom instructions (used with the custom topic)")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadOrDefault(configPath())
	if err != nil {
		return err
	}
	applyLogLevel(cfg.Logging.Level)

	c := newBackendClient(cfg)

	var server *metrics.Server
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		server = metrics.NewServer(metrics.ServerConfig{Addr: cfg.Metrics.Addr})
		m = server.GetMetrics()
		go func() {
			if err := server.Start(); err != nil {
				log.WithError(err).Error("metrics server failed")
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Stop(ctx)
		}()
	} else {
		m = metrics.NewMetrics(prometheus.NewRegistry())
	}
	c.SetMetrics(m)

	// Flags set on the command line override the config file.
	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "topic":
			cfg.Session.Topic = chatTopic
		case "instructions":
			cfg.Session.CustomInstructions = chatInstructions
		}
	})

	sess := session.New(session.Options{
		Client:             c,
		Pipeline:           middleware.DefaultChain(m),
		Metrics:            m,
		Topic:              cfg.Session.Topic,
		CustomInstructions: cfg.Session.CustomInstructions,
	})

	var transcript *logger.TranscriptLogger
	if cfg.Logging.TranscriptsEnabled() {
		transcript, err = logger.NewTranscriptLogger(cfg.Logging.TranscriptDir, cfg.Logging.TranscriptFormat, nil)
		if err != nil {
			return fmt.Errorf("failed to open transcript: %w", err)
		}
		defer transcript.Close()
	}

	// Watch the config file so log level and session defaults can change
	// without restarting the chat.
	if _, statErr := os.Stat(configPath()); statErr == nil {
		if watcher, werr := config.NewWatcher(configPath()); werr == nil {
			watcher.OnChange(func(old, updated *config.Config) {
				if old.Logging.Level != updated.Logging.Level {
					applyLogLevel(updated.Logging.Level)
				}
				if old.Session.CustomInstructions != updated.Session.CustomInstructions {
					sess.SetCustomInstructions(updated.Session.CustomInstructions)
				}
			})
			go watcher.Start()
			defer watcher.Stop()
		} else {
			log.WithError(werr).Warn("config watcher unavailable")
		}
	}

	return tui.Run(cmd.Context(), tui.Options{
		Session:    sess,
		Gate:       auth.NewGate(cfg.Access.Key),
		Client:     c,
		Config:     cfg,
		Transcript: transcript,
		ExportDir:  filepath.Join(filepath.Dir(cfg.Logging.TranscriptDir), "exports"),
		LogLevel:   zerologLevel(cfg.Logging.Level),
		Version:    version.GetShortVersion(),
	})
}

// newBackendClient builds the backend client from config, including the
// optional pacing limiter.
func newBackendClient(cfg *config.Config) *client.AgentClient {
	c := client.NewAgentClient(cfg.Backend.Endpoint, cfg.Backend.APIKey)
	c.SetTimeout(cfg.Backend.Timeout)
	if cfg.RateLimit.Enabled {
		c.SetLimiter(ratelimit.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}
	return c
}

func zerologLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func applyLogLevel(level string) {
	log.SetLevel(zerologLevel(level))
}
