package config

// Config is the toolbench configuration file.
type Config struct {
	Version   int                      `yaml:"version" toml:"version"`
	LogLevel  string                   `yaml:"log_level" toml:"log_level"`
	Corpus    CorpusConfig             `yaml:"corpus" toml:"corpus"`
	Model     ModelConfig              `yaml:"model" toml:"model"`
	Embedding EmbeddingConfig          `yaml:"embedding" toml:"embedding"`
	Scorer    ScorerConfig             `yaml:"scorer" toml:"scorer"`
	Tools     ToolsConfig              `yaml:"tools" toml:"tools"`
	Shell     ShellConfig              `yaml:"shell" toml:"shell"`
	Variants  map[string]VariantConfig `yaml:"variants" toml:"variants"`
	Run       RunConfig                `yaml:"run" toml:"run"`
}

// CorpusConfig locates the pre-built corpus. Relative paths resolve against Root.
type CorpusConfig struct {
	Root        string `yaml:"root" toml:"root"`
	DocsDir     string `yaml:"docs_dir" toml:"docs_dir"`
	Database    string `yaml:"database" toml:"database"`
	Vectors     string `yaml:"vectors" toml:"vectors"`
	VectorIndex string `yaml:"vector_index" toml:"vector_index"`
}

// ModelConfig selects the agent model endpoint.
type ModelConfig struct {
	Provider        string   `yaml:"provider" toml:"provider"`
	Model           string   `yaml:"model" toml:"model"`
	BaseURL         string   `yaml:"base_url" toml:"base_url"`
	Temperature     *float64 `yaml:"temperature" toml:"temperature"`
	MaxOutputTokens int      `yaml:"max_output_tokens" toml:"max_output_tokens"`
	// APIKey is only ever read from the environment.
	APIKey string `yaml:"-" toml:"-"`
}

// EmbeddingConfig selects the query embedding endpoint.
type EmbeddingConfig struct {
	Model          string `yaml:"model" toml:"model"`
	BaseURL        string `yaml:"base_url" toml:"base_url"`
	Dimension      int    `yaml:"dimension" toml:"dimension"`
	CacheSize      int    `yaml:"cache_size" toml:"cache_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
	APIKey         string `yaml:"-" toml:"-"`
}

// ScorerConfig tunes the factuality classifier.
type ScorerConfig struct {
	Model        string             `yaml:"model" toml:"model"`
	Attempts     int                `yaml:"attempts" toml:"attempts"`
	ChoiceScores map[string]float64 `yaml:"choice_scores" toml:"choice_scores"`
}

// ToolsConfig holds limits shared by every tool adapter.
type ToolsConfig struct {
	MaxOutputChars int `yaml:"max_output_chars" toml:"max_output_chars"`
	TimeoutSeconds int `yaml:"timeout_seconds" toml:"timeout_seconds"`
}

// ShellConfig configures the shell sandbox variant.
type ShellConfig struct {
	Subset            string   `yaml:"subset" toml:"subset"`
	Commands          []string `yaml:"commands" toml:"commands"`
	TimeoutSeconds    int      `yaml:"timeout_seconds" toml:"timeout_seconds"`
	MaxCommands       int      `yaml:"max_commands" toml:"max_commands"`
	MaxLoopIterations int      `yaml:"max_loop_iterations" toml:"max_loop_iterations"`
	MaxCallDepth      int      `yaml:"max_call_depth" toml:"max_call_depth"`
}

// VariantConfig overrides the budget of one variant.
type VariantConfig struct {
	MaxSteps   int `yaml:"max_steps" toml:"max_steps"`
	MaxSeconds int `yaml:"max_seconds" toml:"max_seconds"`
}

// RunConfig configures evaluation runs.
type RunConfig struct {
	QuestionsFile string   `yaml:"questions_file" toml:"questions_file"`
	OutputDir     string   `yaml:"output_dir" toml:"output_dir"`
	Variants      []string `yaml:"variants" toml:"variants"`
	Concurrency   int      `yaml:"concurrency" toml:"concurrency"`
	// Isolation is "process" (one worker process per invocation) or "inline".
	Isolation string `yaml:"isolation" toml:"isolation"`
}
