package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Thresholds are the RECIST-like decision thresholds. They are passed into
// the classification engine at construction; the engine never reads the
// environment itself.
type Thresholds struct {
	ProgressionPct   float64 `yaml:"progression_pct"`
	ProgressionAbsMM float64 `yaml:"progression_abs_mm"`
	ResponsePct      float64 `yaml:"response_pct"`
}

// DefaultThresholds returns the standard thresholds: progression requires a
// >=20% AND >=5mm increase, response a >=30% decrease.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ProgressionPct:   20.0,
		ProgressionAbsMM: 5.0,
		ResponsePct:      30.0,
	}
}

// Config holds all runtime configuration. It is built once in main and
// passed into each component explicitly.
type Config struct {
	LogLevel   string
	ServerHost string
	ServerPort string

	// Optional LLM narrative enrichment
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	Thresholds      Thresholds
	MaxSampleSlices int

	// Extra header spellings per canonical column, merged on top of the
	// built-in alias table.
	ColumnAliases map[string][]string
}

// fileOverrides is the YAML shape accepted by ApplyFile.
type fileOverrides struct {
	Thresholds      *Thresholds         `yaml:"thresholds"`
	ColumnAliases   map[string][]string `yaml:"column_aliases"`
	MaxSampleSlices *int                `yaml:"max_sample_slices"`
}

// Load builds a Config from the environment.
func Load() *Config {
	return &Config{
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		ServerHost: getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort: getEnv("SERVER_PORT", "8080"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		Thresholds: Thresholds{
			ProgressionPct:   getFloatEnv("PROGRESSION_PCT_THRESHOLD", 20.0),
			ProgressionAbsMM: getFloatEnv("PROGRESSION_ABS_MM_THRESHOLD", 5.0),
			ResponsePct:      getFloatEnv("RESPONSE_PCT_THRESHOLD", 30.0),
		},
		MaxSampleSlices: getIntEnv("MAX_SAMPLE_SLICES", 16),
		ColumnAliases:   map[string][]string{},
	}
}

// ApplyFile merges overrides from a YAML file on top of the current config.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file %s: %w", path, err)
	}

	var ov fileOverrides
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("could not parse config file %s: %w", path, err)
	}

	if ov.Thresholds != nil {
		c.Thresholds = *ov.Thresholds
	}
	if ov.MaxSampleSlices != nil {
		c.MaxSampleSlices = *ov.MaxSampleSlices
	}
	for canonical, aliases := range ov.ColumnAliases {
		c.ColumnAliases[canonical] = append(c.ColumnAliases[canonical], aliases...)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
