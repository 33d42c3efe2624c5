// Package config handles converter configuration loading and management.
package config

// Config holds all converter settings.
type Config struct {
	Output  OutputConfig  `yaml:"output"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// OutputConfig holds artifact placement settings.
type OutputConfig struct {
	Dir        string `yaml:"dir"`         // Directory receiving the exported artifacts
	PerSurface bool   `yaml:"per_surface"` // One mesh file per surface instead of one combined file
}

// ExportConfig holds geometry processing settings.
type ExportConfig struct {
	WorldSpace  bool `yaml:"world_space"`  // Bake node transforms into vertex data
	FlipU       bool `yaml:"flip_u"`       // Mirror the U texture coordinate
	FlipV       bool `yaml:"flip_v"`       // Mirror the V texture coordinate
	VertexCache bool `yaml:"vertex_cache"` // Reorder triangles for post-transform cache reuse
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:        ".",
			PerSurface: false,
		},
		Export: ExportConfig{
			WorldSpace:  false,
			FlipU:       false,
			FlipV:       false,
			VertexCache: true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
