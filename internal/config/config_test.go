package config

import (
	"os"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Qdrant:   QdrantConfig{URL: "http://localhost:6333"},
		Embedding: EmbeddingConfig{
			BaseURL: "http://localhost:11434/v1",
			Model:   "bge-small-en-v1.5",
		},
		Generation: GenerationConfig{Host: "http://localhost:11434", Model: "llama3"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }},
		{"no database addrs", func(c *Config) { c.Database.Addrs = nil }},
		{"no qdrant url", func(c *Config) { c.Qdrant.URL = "" }},
		{"no embedding model", func(c *Config) { c.Embedding.Model = "" }},
		{"no generation host", func(c *Config) { c.Generation.Host = "" }},
		{"bad language", func(c *Config) { c.Wikipedia.Language = "eng" }},
		{"overlap >= chunk size", func(c *Config) { c.Wikipedia.ChunkOverlap = c.Wikipedia.ChunkSize }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Qdrant.Collection != "wiki_rag" {
		t.Errorf("collection default: got %q", cfg.Qdrant.Collection)
	}
	if cfg.Qdrant.VectorSize != 384 {
		t.Errorf("vector size default: got %d", cfg.Qdrant.VectorSize)
	}
	if cfg.Wikipedia.ChunkSize != 400 || cfg.Wikipedia.ChunkOverlap != 40 {
		t.Errorf("chunk defaults: got size=%d overlap=%d", cfg.Wikipedia.ChunkSize, cfg.Wikipedia.ChunkOverlap)
	}
	if cfg.Database.KeyPrefix != "wikirag:" {
		t.Errorf("key prefix default: got %q", cfg.Database.KeyPrefix)
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("WIKIRAG_TEST_VAR", "secret")
	defer os.Unsetenv("WIKIRAG_TEST_VAR")

	got := string(expandEnvVars([]byte("key: ${WIKIRAG_TEST_VAR}")))
	if got != "key: secret" {
		t.Errorf("got %q", got)
	}

	got = string(expandEnvVars([]byte("key: ${WIKIRAG_UNSET_VAR:-fallback}")))
	if got != "key: fallback" {
		t.Errorf("got %q", got)
	}
}
