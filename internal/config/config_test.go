package config

import (
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:      HTTPConfig{Port: 8080},
		Catalog:   CatalogConfig{SnapshotPath: "data/catalog.json"},
		Embedding: EmbeddingConfig{Model: "text-embedding-3-small"},
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	for _, port := range []int{0, -1, 70000} {
		cfg := validConfig()
		cfg.HTTP.Port = port

		if err := cfg.Validate(); err == nil {
			t.Errorf("expected error for port %d", port)
		}
	}
}

func TestValidate_MissingSnapshotPath(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.SnapshotPath = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing snapshot path")
	}
}

func TestValidate_MissingModel(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding model")
	}
}

func TestValidate_NegativeWeights(t *testing.T) {
	cfg := validConfig()
	cfg.Ranker.DenseWeight = -0.1

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative dense weight")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Cache.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Cache.ReadinessTimeout)
	}
	if cfg.Embedding.BatchSize != 128 {
		t.Errorf("expected BatchSize=128, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Embedding.FitWorkers != 4 {
		t.Errorf("expected FitWorkers=4, got %d", cfg.Embedding.FitWorkers)
	}
	if cfg.Ranker.DenseWeight != 0.5 {
		t.Errorf("expected DenseWeight=0.5, got %v", cfg.Ranker.DenseWeight)
	}
	if cfg.Ranker.SparseWeight != 0.3 {
		t.Errorf("expected SparseWeight=0.3, got %v", cfg.Ranker.SparseWeight)
	}
	if cfg.Ranker.DirectTitleBoost != 0.5 {
		t.Errorf("expected DirectTitleBoost=0.5, got %v", cfg.Ranker.DirectTitleBoost)
	}
	if cfg.Ranker.KeywordTitleBoost != 0.2 {
		t.Errorf("expected KeywordTitleBoost=0.2, got %v", cfg.Ranker.KeywordTitleBoost)
	}
	if cfg.Ranker.KeywordThreshold != 0.4 {
		t.Errorf("expected KeywordThreshold=0.4, got %v", cfg.Ranker.KeywordThreshold)
	}
	if cfg.Ranker.CandidatePool != 200 {
		t.Errorf("expected CandidatePool=200, got %d", cfg.Ranker.CandidatePool)
	}
	if cfg.Ranker.TitleTokenMinLen != 4 {
		t.Errorf("expected TitleTokenMinLen=4, got %d", cfg.Ranker.TitleTokenMinLen)
	}
	if cfg.Artifacts.Dir != "data/artifacts" {
		t.Errorf("expected Artifacts.Dir='data/artifacts', got %q", cfg.Artifacts.Dir)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Embedding: EmbeddingConfig{BatchSize: 32, FitWorkers: 2},
		Ranker:    RankerConfig{DenseWeight: 0.7, SparseWeight: 0.2, CandidatePool: 50},
		Artifacts: ArtifactsConfig{Dir: "/tmp/artifacts"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Embedding.BatchSize != 32 {
		t.Errorf("expected BatchSize=32, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Ranker.DenseWeight != 0.7 {
		t.Errorf("expected DenseWeight=0.7, got %v", cfg.Ranker.DenseWeight)
	}
	if cfg.Ranker.CandidatePool != 50 {
		t.Errorf("expected CandidatePool=50, got %d", cfg.Ranker.CandidatePool)
	}
	if cfg.Artifacts.Dir != "/tmp/artifacts" {
		t.Errorf("expected Artifacts.Dir='/tmp/artifacts', got %q", cfg.Artifacts.Dir)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MANREC_TEST_VAR", "from-env")

	in := []byte("a: ${MANREC_TEST_VAR}\nb: ${MANREC_TEST_UNSET:-fallback}\nc: ${MANREC_TEST_UNSET}\n")
	out := string(expandEnvVars(in))

	want := "a: from-env\nb: fallback\nc: \n"
	if out != want {
		t.Errorf("expandEnvVars:\ngot:  %q\nwant: %q", out, want)
	}
}
