package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config manages scoring configuration using Viper
type Config struct {
	v *viper.Viper
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	v := viper.New()

	// Solver parameters
	v.SetDefault("solver.kind", "hillclimber")
	v.SetDefault("solver.restarts", 4)
	v.SetDefault("solver.max_iterations", 1000)
	v.SetDefault("solver.batch_swaps", true)
	v.SetDefault("solver.parallel_restarts", false)
	v.SetDefault("solver.random_seed", int64(42))
	v.SetDefault("solver.ilp_max_seconds", 240)
	v.SetDefault("solver.ilp_backup", "hillclimber")
	v.SetDefault("solver.rilp_max_seconds", 15)
	v.SetDefault("solver.rilp_max_iterations", 250)
	v.SetDefault("solver.rilp_polish", true)

	// Graph reading and standardization
	v.SetDefault("graph.input_format", "penman")
	v.SetDefault("graph.type", "none")
	v.SetDefault("graph.edges", "")
	v.SetDefault("graph.remove_duplicates", false)
	v.SetDefault("graph.lossless_compression", false)
	v.SetDefault("graph.affix_vars", false)
	v.SetDefault("graph.norm_logical_ops", false)
	v.SetDefault("graph.reify_constants", false)

	// Scoring and reporting
	v.SetDefault("score.dimension", "main")
	v.SetDefault("score.matcher", "identity")
	v.SetDefault("score.type", "micro")
	v.SetDefault("score.bootstrap", false)
	v.SetDefault("score.bootstrap_samples", 1000)
	v.SetDefault("score.confidence", 0.95)
	v.SetDefault("output.format", "text")

	// Performance parameters
	v.SetDefault("performance.num_workers", runtime.NumCPU())

	// Logging parameters
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.progress_every", 100)
	v.SetDefault("analysis.track_swaps", false)
	v.SetDefault("analysis.output_file", "swaps.jsonl")

	// Server parameters
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("jobs.max_workers", 4)
	v.SetDefault("jobs.timeout", 30*time.Minute)
	v.SetDefault("jobs.result_ttl", time.Hour)
	v.SetDefault("jobs.cleanup_interval", 5*time.Minute)

	v.SetEnvPrefix("SMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{v: v}
}

// LoadFromFile loads configuration from file
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

// Viper exposes the underlying store so CLI flags can be bound to keys
func (c *Config) Viper() *viper.Viper { return c.v }

// Getters for solver parameters
func (c *Config) SolverKind() string { return c.v.GetString("solver.kind") }
func (c *Config) Restarts() int { return c.v.GetInt("solver.restarts") }
func (c *Config) MaxIterations() int { return c.v.GetInt("solver.max_iterations") }
func (c *Config) BatchSwaps() bool { return c.v.GetBool("solver.batch_swaps") }
func (c *Config) ParallelRestarts() bool { return c.v.GetBool("solver.parallel_restarts") }
func (c *Config) RandomSeed() int64 { return c.v.GetInt64("solver.random_seed") }
func (c *Config) ILPMaxSeconds() int { return c.v.GetInt("solver.ilp_max_seconds") }
func (c *Config) ILPBackup() string { return c.v.GetString("solver.ilp_backup") }
func (c *Config) RILPMaxSeconds() int { return c.v.GetInt("solver.rilp_max_seconds") }
func (c *Config) RILPMaxIterations() int { return c.v.GetInt("solver.rilp_max_iterations") }
func (c *Config) RILPPolish() bool { return c.v.GetBool("solver.rilp_polish") }

func (c *Config) InputFormat() string { return c.v.GetString("graph.input_format") }
func (c *Config) GraphType() string { return c.v.GetString("graph.type") }
func (c *Config) Edges() string { return c.v.GetString("graph.edges") }
func (c *Config) RemoveDuplicates() bool { return c.v.GetBool("graph.remove_duplicates") }
func (c *Config) LosslessCompression() bool { return c.v.GetBool("graph.lossless_compression") }
func (c *Config) AffixVars() bool { return c.v.GetBool("graph.affix_vars") }
func (c *Config) NormLogicalOps() bool { return c.v.GetBool("graph.norm_logical_ops") }
func (c *Config) ReifyConstants() bool { return c.v.GetBool("graph.reify_constants") }

func (c *Config) ScoreDimension() string { return c.v.GetString("score.dimension") }
func (c *Config) TripleMatcher() string { return c.v.GetString("score.matcher") }
func (c *Config) ScoreType() string { return c.v.GetString("score.type") }
func (c *Config) Bootstrap() bool { return c.v.GetBool("score.bootstrap") }
func (c *Config) BootstrapSamples() int { return c.v.GetInt("score.bootstrap_samples") }
func (c *Config) Confidence() float64 { return c.v.GetFloat64("score.confidence") }
func (c *Config) OutputFormat() string { return c.v.GetString("output.format") }

func (c *Config) NumWorkers() int { return c.v.GetInt("performance.num_workers") }

func (c *Config) LogLevel() string { return c.v.GetString("logging.level") }
func (c *Config) ProgressEvery() int { return c.v.GetInt("logging.progress_every") }
func (c *Config) TrackSwaps() bool { return c.v.GetBool("analysis.track_swaps") }
func (c *Config) SwapTrackingFile() string { return c.v.GetString("analysis.output_file") }

func (c *Config) ServerAddress() string { return c.v.GetString("server.address") }
func (c *Config) ReadTimeout() time.Duration { return c.v.GetDuration("server.read_timeout") }
func (c *Config) WriteTimeout() time.Duration { return c.v.GetDuration("server.write_timeout") }
func (c *Config) AllowedOrigins() []string { return c.v.GetStringSlice("server.allowed_origins") }
func (c *Config) JobWorkers() int { return c.v.GetInt("jobs.max_workers") }
func (c *Config) JobTimeout() time.Duration { return c.v.GetDuration("jobs.timeout") }
func (c *Config) JobResultTTL() time.Duration { return c.v.GetDuration("jobs.result_ttl") }
func (c *Config) JobCleanupInterval() time.Duration { return c.v.GetDuration("jobs.cleanup_interval") }

// Set allows dynamic configuration changes
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// With returns a copy of the configuration with overrides applied on top.
// The receiver is not modified.
func (c *Config) With(overrides map[string]interface{}) (*Config, error) {
	out := NewConfig()
	if err := out.v.MergeConfigMap(c.v.AllSettings()); err != nil {
		return nil, err
	}
	for k, v := range overrides {
		out.v.Set(k, v)
	}
	return out, nil
}

// CreateLogger creates a zerolog logger based on config
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "smatch").Logger()
}
