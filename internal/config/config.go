// Package config handles workbench configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/shaderbench/internal/logger"
)

// Config holds all workbench settings.
type Config struct {
	Graphics  GraphicsConfig  `yaml:"graphics"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Models    ModelsConfig    `yaml:"models"`
	Viewer    ViewerConfig    `yaml:"viewer"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width        int        `yaml:"width"`
	Height       int        `yaml:"height"`
	Fullscreen   bool       `yaml:"fullscreen"`
	VSync        bool       `yaml:"vsync"`
	SampleFactor float32    `yaml:"sample_factor"` // drawable pixels per window unit
	ClearColor   [4]float32 `yaml:"clear_color,flow"`
}

// WorkspaceConfig names the files the editor watches.
type WorkspaceConfig struct {
	Dir            string `yaml:"dir"`
	VertexShader   string `yaml:"vertex_shader"`
	FragmentShader string `yaml:"fragment_shader"`
	Uniforms       string `yaml:"uniforms"`
	SessionsDir    string `yaml:"sessions_dir"`
	ScreenshotsDir string `yaml:"screenshots_dir"`
}

// ModelsConfig holds where model documents come from.
type ModelsConfig struct {
	Source  string `yaml:"source"` // directory, http(s) URL or .grf pack
	Index   string `yaml:"index"`
	Default string `yaml:"default"`
}

// ViewerConfig holds camera settings.
type ViewerConfig struct {
	AutoRotate     bool    `yaml:"auto_rotate"`
	CameraDistance float32 `yaml:"camera_distance"`
	Projection     string  `yaml:"projection"`
	FlipTextures   bool    `yaml:"flip_textures"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogFile    string `yaml:"log_file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	file := logger.DefaultFileConfig("")
	return &Config{
		Graphics: GraphicsConfig{
			Width:        1280,
			Height:       720,
			Fullscreen:   false,
			VSync:        true,
			SampleFactor: 1,
			ClearColor:   [4]float32{0.25, 0.25, 0.25, 1},
		},
		Workspace: WorkspaceConfig{
			Dir:            ".",
			VertexShader:   "shader.vert",
			FragmentShader: "shader.frag",
			Uniforms:       "uniforms.yaml",
			SessionsDir:    "sessions",
			ScreenshotsDir: "screenshots",
		},
		Models: ModelsConfig{
			Source:  "models",
			Index:   "index.json",
			Default: "",
		},
		Viewer: ViewerConfig{
			AutoRotate:     true,
			CameraDistance: 5.2,
			Projection:     "perspective",
			FlipTextures:   false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			LogFile:    "",
			MaxSizeMB:  file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAgeDays: file.MaxAgeDays,
			Compress:   file.Compress,
		},
	}
}

// FileConfig converts the logging section for logger.InitWithFileConfig.
func (l LoggingConfig) FileConfig() logger.FileConfig {
	return logger.FileConfig{
		Path:       l.LogFile,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// Validate reports the first setting the workbench cannot start with.
func (c *Config) Validate() error {
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		return fmt.Errorf("graphics: invalid window size %dx%d", c.Graphics.Width, c.Graphics.Height)
	}
	if c.Graphics.SampleFactor <= 0 {
		return fmt.Errorf("graphics: sample_factor must be positive, got %g", c.Graphics.SampleFactor)
	}
	if c.Workspace.VertexShader == "" || c.Workspace.FragmentShader == "" {
		return fmt.Errorf("workspace: shader file names must not be empty")
	}
	switch c.Viewer.Projection {
	case "perspective", "orthographic", "ortho":
	default:
		return fmt.Errorf("viewer: unknown projection %q", c.Viewer.Projection)
	}
	if c.Viewer.CameraDistance <= 0 {
		return fmt.Errorf("viewer: camera_distance must be positive, got %g", c.Viewer.CameraDistance)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
