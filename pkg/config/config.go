package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedding struct {
		Provider  string  `yaml:"provider"`
		BaseURL   string  `yaml:"base_url"`
		Model     string  `yaml:"model"`
		APIKey    string  `yaml:"api_key"`
		BatchSize int     `yaml:"batch_size"`
		RateLimit float64 `yaml:"rate_limit"`
	} `yaml:"embedding"`

	LLM struct {
		Provider    string  `yaml:"provider"`
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		APIKey      string  `yaml:"api_key"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Index struct {
		Backend    string `yaml:"backend"`
		Path       string `yaml:"path"`
		Tenant     string `yaml:"tenant"`
		Database   string `yaml:"database"`
		Collection string `yaml:"collection"`
		URL        string `yaml:"url"`
		TableName  string `yaml:"table_name"`
		VectorDim  int    `yaml:"vector_dim"`
		BatchSize  int    `yaml:"batch_size"`
		PurgeMode  string `yaml:"purge_mode"`
	} `yaml:"index"`

	Extraction struct {
		MinChars    int `yaml:"min_chars"`
		MinKeywords int `yaml:"min_keywords"`
	} `yaml:"extraction"`

	Retrieval struct {
		TopK int `yaml:"top_k"`
	} `yaml:"retrieval"`

	Candidates struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"candidates"`

	Server struct {
		Addr string `yaml:"addr"`
		// IngestRoot confines websocket ingest requests; empty disables them.
		IngestRoot     string   `yaml:"ingest_root"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Log struct {
		JSON  bool `yaml:"json"`
		Debug bool `yaml:"debug"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/screener/config.yaml"),
			"/etc/screener/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Environment wins over the file
	mergeWithEnv(&config)

	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embedding.Provider == "" {
		config.Embedding.Provider = "ollama"
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "bge-m3"
	}
	if config.Embedding.BaseURL == "" && config.Embedding.Provider == "ollama" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 16
	}

	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "qwen2.5"
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.3
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "sqlite"
	}
	if config.Index.Path == "" {
		config.Index.Path = "./vector_db"
	}
	if config.Index.Tenant == "" {
		config.Index.Tenant = "default_tenant"
	}
	if config.Index.Database == "" {
		config.Index.Database = "default_database"
	}
	if config.Index.Collection == "" {
		config.Index.Collection = "resume_collection"
	}
	if config.Index.TableName == "" {
		config.Index.TableName = "resume_nodes"
	}
	if config.Index.VectorDim == 0 {
		config.Index.VectorDim = 1024
	}
	if config.Index.BatchSize == 0 {
		config.Index.BatchSize = 100
	}
	if config.Index.PurgeMode == "" {
		config.Index.PurgeMode = "rebuild"
	}

	if config.Extraction.MinChars == 0 {
		config.Extraction.MinChars = 50
	}
	if config.Extraction.MinKeywords == 0 {
		config.Extraction.MinKeywords = 2
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 5
	}

	if config.Candidates.DBPath == "" {
		config.Candidates.DBPath = "./data/candidates.db"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.Embedding.Provider == "" || config.Embedding.Provider == "ollama" {
			config.Embedding.BaseURL = baseURL
		}
		if config.LLM.Provider == "" || config.LLM.Provider == "ollama" {
			config.LLM.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.URL = dbURL
	}
	if path := os.Getenv("SCREENER_INDEX_PATH"); path != "" {
		config.Index.Path = path
	}
	if root := os.Getenv("SCREENER_INGEST_ROOT"); root != "" {
		config.Server.IngestRoot = root
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if config.Embedding.Provider == "openai" && config.Embedding.APIKey == "" {
			config.Embedding.APIKey = key
		}
		if config.LLM.Provider == "openai" && config.LLM.APIKey == "" {
			config.LLM.APIKey = key
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if config.Embedding.Provider == "gemini" && config.Embedding.APIKey == "" {
			config.Embedding.APIKey = key
		}
	}
}
