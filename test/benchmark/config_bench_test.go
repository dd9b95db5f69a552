package benchmark

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/deagent-io/deagent/pkg/config"
)

// BenchmarkConfigValidate benchmarks configuration validation
func BenchmarkConfigValidate(b *testing.B) {
	cfg := createTestConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cfg.Validate()
	}
}

// BenchmarkConfigMarshal benchmarks YAML marshaling
func BenchmarkConfigMarshal(b *testing.B) {
	cfg := createTestConfig()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = yaml.Marshal(cfg)
	}
}

// BenchmarkConfigUnmarshal benchmarks YAML unmarshaling
func BenchmarkConfigUnmarshal(b *testing.B) {
	yamlData := []byte(`version: "1.0"
backend:
  endpoint: https://agents.example.com/api/chat
  api_key: bench-key
  timeout: 180s

session:
  topic: pipeline_design

logging:
  level: info
  transcript_dir: /tmp/chats
  transcript_format: json
  transcripts: true

rate_limit:
  enabled: true
  requests_per_second: 2
  burst: 5
`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var cfg config.Config
		_ = yaml.Unmarshal(yamlData, &cfg)
	}
}

// BenchmarkConfigLoadFromFile benchmarks loading config from file
func BenchmarkConfigLoadFromFile(b *testing.B) {
	tempDir := b.TempDir()
	configPath := filepath.Join(tempDir, "bench-config.yaml")

	cfg := createTestConfig()
	data, _ := yaml.Marshal(cfg)
	_ = os.WriteFile(configPath, data, 0644)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = config.LoadConfig(configPath)
	}
}

// BenchmarkNewDefaultConfig benchmarks default config creation
func BenchmarkNewDefaultConfig(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = config.NewDefaultConfig()
	}
}

// Helper function to create a test configuration
func createTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Backend.Endpoint = "https://agents.example.com/api/chat"
	cfg.Backend.APIKey = "bench-key"
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSecond = 2
	cfg.RateLimit.Burst = 5
	return cfg
}
