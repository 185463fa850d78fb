package config

import (
    "errors"
    "fmt"
    "os"
    "slices"
    "strconv"
    "strings"
    "time"

    "github.com/joho/godotenv"
    "gopkg.in/yaml.v3"

    "github.com/example/todo-agent/internal/providers/llm"
)

// Config holds all todo-agent settings.
type Config struct {
    Server  ServerConfig  `yaml:"server"`
    Store   StoreConfig   `yaml:"store"`
    Logging LoggingConfig `yaml:"logging"`
    LLM     LLMConfig     `yaml:"llm"`
    Agent   AgentConfig   `yaml:"agent"`
}

type ServerConfig struct {
    Port string `yaml:"port"`
    // AuthHeader carries the caller's user ID, set by the session proxy in front of us.
    AuthHeader  string `yaml:"auth_header"`
    AppURL      string `yaml:"app_url"`
    AllowOrigin string `yaml:"allow_origin"`
}

type StoreConfig struct {
    Driver string `yaml:"driver"` // memory, sqlite
    Path   string `yaml:"path"`
}

type LoggingConfig struct {
    Level       string `yaml:"level"`
    Development bool   `yaml:"development"`
}

type LLMConfig struct {
    Provider      string   `yaml:"provider"`
    Model         string   `yaml:"model"`
    Fallbacks     []string `yaml:"fallbacks"`
    Timeout       string   `yaml:"timeout"`
    OpenRouterKey string   `yaml:"openrouter_api_key"`
    OpenAIKey     string   `yaml:"openai_api_key"`
    OpenAIBase    string   `yaml:"openai_api_base"`
    AnthropicKey  string   `yaml:"anthropic_api_key"`
    GoogleKey     string   `yaml:"google_api_key"`
}

type AgentConfig struct {
    MaxIterations int `yaml:"max_iterations"`
    HistoryLimit  int `yaml:"history_limit"`
}

var (
    ValidDrivers   = []string{"memory", "sqlite"}
    ValidProviders = []string{"", "openrouter", "openai", "anthropic", "gemini", "mock"}
)

func Default() *Config {
    return &Config{
        Server:  ServerConfig{Port: "8080", AuthHeader: "X-User-ID", AppURL: "http://localhost:3000", AllowOrigin: "*"},
        Store:   StoreConfig{Driver: "sqlite", Path: "~/.todo-agent/todo.db"},
        Logging: LoggingConfig{Level: "info"},
        LLM:     LLMConfig{Timeout: "45s"},
        Agent:   AgentConfig{MaxIterations: 5},
    }
}

// Load builds the configuration: defaults, then the YAML file at path (or
// $TODO_AGENT_CONFIG), then the environment. A .env file in the working
// directory is loaded first without overriding variables already set.
func Load(path string) (*Config, error) {
    if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
        return nil, fmt.Errorf("failed to read .env: %w", err)
    }
    cfg := Default()
    if path == "" { path = os.Getenv("TODO_AGENT_CONFIG") }
    if path != "" {
        data, err := os.ReadFile(path)
        if err != nil { return nil, fmt.Errorf("failed to read config: %w", err) }
        if err := yaml.Unmarshal(data, cfg); err != nil {
            return nil, fmt.Errorf("failed to parse config: %w", err)
        }
    }
    if err := cfg.applyEnvOverrides(); err != nil { return nil, err }
    return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
    str := func(key string, dst *string) {
        if v := strings.TrimSpace(os.Getenv(key)); v != "" { *dst = v }
    }
    str("PORT", &c.Server.Port)
    str("AUTH_HEADER", &c.Server.AuthHeader)
    str("APP_URL", &c.Server.AppURL)
    str("ALLOW_ORIGIN", &c.Server.AllowOrigin)
    str("DB_DRIVER", &c.Store.Driver)
    str("DB_PATH", &c.Store.Path)
    str("LOG_LEVEL", &c.Logging.Level)
    str("LLM_PROVIDER", &c.LLM.Provider)
    str("LLM_MODEL", &c.LLM.Model)
    str("OPENROUTER_API_KEY", &c.LLM.OpenRouterKey)
    str("OPENAI_API_KEY", &c.LLM.OpenAIKey)
    str("OPENAI_API_BASE", &c.LLM.OpenAIBase)
    str("ANTHROPIC_API_KEY", &c.LLM.AnthropicKey)
    str("GOOGLE_API_KEY", &c.LLM.GoogleKey)
    if v := os.Getenv("LLM_FALLBACKS"); v != "" {
        c.LLM.Fallbacks = splitList(v)
    }
    if v := os.Getenv("LLM_HTTP_TIMEOUT_MS"); v != "" {
        ms, err := strconv.Atoi(v)
        if err != nil { return fmt.Errorf("LLM_HTTP_TIMEOUT_MS: %w", err) }
        c.LLM.Timeout = (time.Duration(ms) * time.Millisecond).String()
    }
    if v := os.Getenv("LOG_DEV"); v != "" {
        b, err := strconv.ParseBool(v)
        if err != nil { return fmt.Errorf("LOG_DEV: %w", err) }
        c.Logging.Development = b
    }
    for key, dst := range map[string]*int{
        "AGENT_MAX_ITERATIONS": &c.Agent.MaxIterations,
        "AGENT_HISTORY_LIMIT":  &c.Agent.HistoryLimit,
    } {
        if v := os.Getenv(key); v != "" {
            n, err := strconv.Atoi(v)
            if err != nil { return fmt.Errorf("%s: %w", key, err) }
            *dst = n
        }
    }
    return nil
}

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" { out = append(out, p) }
    }
    return out
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
    var errs []error
    if _, err := strconv.Atoi(c.Server.Port); err != nil {
        errs = append(errs, fmt.Errorf("server.port %q is not a number", c.Server.Port))
    }
    if strings.TrimSpace(c.Server.AuthHeader) == "" {
        errs = append(errs, errors.New("server.auth_header must be set"))
    }
    if !slices.Contains(ValidDrivers, c.Store.Driver) {
        errs = append(errs, fmt.Errorf("store.driver %q must be one of %s", c.Store.Driver, strings.Join(ValidDrivers, ", ")))
    }
    if c.Store.Driver == "sqlite" && strings.TrimSpace(c.Store.Path) == "" {
        errs = append(errs, errors.New("store.path is required for sqlite"))
    }
    for _, p := range append([]string{c.LLM.Provider}, c.LLM.Fallbacks...) {
        if !slices.Contains(ValidProviders, strings.ToLower(p)) {
            errs = append(errs, fmt.Errorf("unknown llm provider %q", p))
        }
    }
    if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
        errs = append(errs, fmt.Errorf("llm.timeout: %w", err))
    }
    if c.Agent.MaxIterations <= 0 {
        errs = append(errs, errors.New("agent.max_iterations must be positive"))
    }
    if c.Agent.HistoryLimit < 0 {
        errs = append(errs, errors.New("agent.history_limit must not be negative"))
    }
    return errors.Join(errs...)
}

// GetLLMTimeout returns the provider HTTP timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
    d, err := time.ParseDuration(c.LLM.Timeout)
    if err != nil { return 45 * time.Second }
    return d
}

func (c *Config) LLMOptions() llm.Options {
    return llm.Options{
        Provider:      c.LLM.Provider,
        Model:         c.LLM.Model,
        Fallbacks:     c.LLM.Fallbacks,
        OpenRouterKey: c.LLM.OpenRouterKey,
        OpenAIKey:     c.LLM.OpenAIKey,
        OpenAIBase:    c.LLM.OpenAIBase,
        AnthropicKey:  c.LLM.AnthropicKey,
        GoogleKey:     c.LLM.GoogleKey,
        AppURL:        c.Server.AppURL,
        Timeout:       c.GetLLMTimeout(),
    }
}

func (c *Config) Addr() string { return ":" + c.Server.Port }
