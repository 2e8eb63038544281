// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// DefaultCategories are the top-level model directories recognized by the
// path reconstruction tier when a workflow was authored against a different
// directory layout. Overridable via models.categories.
var DefaultCategories = []string{
	"checkpoints",
	"loras",
	"vae",
	"clip",
	"clip_vision",
	"controlnet",
	"diffusion_models",
	"embeddings",
	"upscale_models",
}

// DefaultModelExtensions are the file extensions indexed as model files.
var DefaultModelExtensions = []string{
	".safetensors", ".ckpt", ".pt", ".pth", ".bin", ".gguf", ".sft", ".vae",
}

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("index.path", "flowdeps.db")
	viper.SetDefault("index.debug", false)

	viper.SetDefault("models.root", "models")
	viper.SetDefault("models.categories", DefaultCategories)
	viper.SetDefault("models.extensions", DefaultModelExtensions)
	viper.SetDefault("models.scanworkers", 0)

	viper.SetDefault("catalog.path", "node-catalog.json")
	viper.SetDefault("registry.path", "node-registry.json")
	viper.SetDefault("registry.cachettlminutes", 30)

	viper.SetDefault("resolve.confidencethreshold", 0.85)
	viper.SetDefault("resolve.maxcandidates", 10)

	viper.SetDefault("manifest.path", "flowdeps.yaml")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.maxsizemb", 100)
	viper.SetDefault("log.maxbackups", 3)
	viper.SetDefault("log.maxagedays", 28)
}

const defaultConfigYAML = `# flowdeps configuration

index:
  # SQLite database backing the content-addressed model index
  path: flowdeps.db
  debug: false

models:
  # Root directory containing model category subdirectories
  root: models
  # Top-level category directories used by path reconstruction
  categories:
    - checkpoints
    - loras
    - vae
    - clip
    - clip_vision
    - controlnet
    - diffusion_models
    - embeddings
    - upscale_models
  extensions:
    - .safetensors
    - .ckpt
    - .pt
    - .pth
    - .bin
    - .gguf
    - .sft
    - .vae

catalog:
  # Node-pack catalog (JSON), mapping pack ids to repository metadata
  path: node-catalog.json

registry:
  # Locally installed node types
  path: node-registry.json
  cachettlminutes: 30

resolve:
  # Fuzzy matches at or above this confidence are accepted automatically
  confidencethreshold: 0.85
  # Candidates presented per ambiguous reference
  maxcandidates: 10

manifest:
  # Persisted per-workflow node pack sets and model pins
  path: flowdeps.yaml

log:
  level: info
  # Optional JSON log file with rotation; empty disables file logging
  file: ""
  maxsizemb: 100
  maxbackups: 3
  maxagedays: 28
`
