package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test graphics defaults
	if cfg.Graphics.Width != 1280 {
		t.Errorf("expected width 1280, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 720 {
		t.Errorf("expected height 720, got %d", cfg.Graphics.Height)
	}
	if cfg.Graphics.Fullscreen {
		t.Error("expected fullscreen to be false by default")
	}
	if cfg.Graphics.SampleFactor != 1 {
		t.Errorf("expected sample factor 1, got %f", cfg.Graphics.SampleFactor)
	}
	if cfg.Graphics.ClearColor != [4]float32{0.25, 0.25, 0.25, 1} {
		t.Errorf("unexpected clear color %v", cfg.Graphics.ClearColor)
	}

	// Test workspace defaults
	if cfg.Workspace.VertexShader != "shader.vert" {
		t.Errorf("expected shader.vert, got %s", cfg.Workspace.VertexShader)
	}
	if cfg.Workspace.FragmentShader != "shader.frag" {
		t.Errorf("expected shader.frag, got %s", cfg.Workspace.FragmentShader)
	}
	if cfg.Workspace.Uniforms != "uniforms.yaml" {
		t.Errorf("expected uniforms.yaml, got %s", cfg.Workspace.Uniforms)
	}

	// Test viewer defaults
	if !cfg.Viewer.AutoRotate {
		t.Error("expected auto rotate to be on by default")
	}
	if cfg.Viewer.CameraDistance != 5.2 {
		t.Errorf("expected camera distance 5.2, got %f", cfg.Viewer.CameraDistance)
	}
	if cfg.Viewer.FlipTextures {
		t.Error("expected flip_textures to be false by default")
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}
	if cfg.Logging.MaxSizeMB != 20 {
		t.Errorf("expected max size 20, got %d", cfg.Logging.MaxSizeMB)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
graphics:
  width: 1920
  height: 1080
  fullscreen: true
  vsync: false
  sample_factor: 2
  clear_color: [0, 0, 0, 1]

workspace:
  dir: work
  uniforms: sheet.yaml

models:
  source: "https://example.com/models"
  default: "teapot.json"

viewer:
  auto_rotate: false
  projection: orthographic
  flip_textures: true

logging:
  level: "debug"
  log_file: "bench.log"
  max_backups: 7
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Load config
	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Verify values were loaded
	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920, got %d", cfg.Graphics.Width)
	}
	if !cfg.Graphics.Fullscreen {
		t.Error("expected fullscreen to be true")
	}
	if cfg.Graphics.VSync {
		t.Error("expected vsync to be false")
	}
	if cfg.Graphics.SampleFactor != 2 {
		t.Errorf("expected sample factor 2, got %f", cfg.Graphics.SampleFactor)
	}
	if cfg.Graphics.ClearColor != [4]float32{0, 0, 0, 1} {
		t.Errorf("unexpected clear color %v", cfg.Graphics.ClearColor)
	}

	if want := filepath.Join(tmpDir, "work"); cfg.Workspace.Dir != want {
		t.Errorf("expected workspace %s, got %s", want, cfg.Workspace.Dir)
	}
	if cfg.Workspace.Uniforms != "sheet.yaml" {
		t.Errorf("expected sheet.yaml, got %s", cfg.Workspace.Uniforms)
	}
	// Unset keys keep their defaults
	if cfg.Workspace.VertexShader != "shader.vert" {
		t.Errorf("expected shader.vert, got %s", cfg.Workspace.VertexShader)
	}

	if cfg.Models.Source != "https://example.com/models" {
		t.Errorf("unexpected model source %s", cfg.Models.Source)
	}
	if cfg.Models.Default != "teapot.json" {
		t.Errorf("unexpected default model %s", cfg.Models.Default)
	}

	if cfg.Viewer.AutoRotate {
		t.Error("expected auto rotate to be false")
	}
	if cfg.Viewer.Projection != "orthographic" {
		t.Errorf("expected orthographic, got %s", cfg.Viewer.Projection)
	}
	if !cfg.Viewer.FlipTextures {
		t.Error("expected flip_textures to be true")
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "bench.log" {
		t.Errorf("expected log file 'bench.log', got %s", cfg.Logging.LogFile)
	}
	fc := cfg.Logging.FileConfig()
	if fc.Path != "bench.log" || fc.MaxBackups != 7 || fc.MaxSizeMB != 20 {
		t.Errorf("unexpected file config %+v", fc)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	// Create temporary config file with invalid YAML
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
graphics:
  width: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Try to load - should error
	cfg := Default()
	err := loadFromFile(cfg, configPath)
	if err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"ortho alias", func(c *Config) { c.Viewer.Projection = "ortho" }, false},
		{"zero width", func(c *Config) { c.Graphics.Width = 0 }, true},
		{"negative sample factor", func(c *Config) { c.Graphics.SampleFactor = -1 }, true},
		{"empty vertex shader", func(c *Config) { c.Workspace.VertexShader = "" }, true},
		{"unknown projection", func(c *Config) { c.Viewer.Projection = "fisheye" }, true},
		{"zero distance", func(c *Config) { c.Viewer.CameraDistance = 0 }, true},
		{"unknown level", func(c *Config) { c.Logging.Level = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWorkspacePath(t *testing.T) {
	cfg := Default()
	cfg.Workspace.Dir = filepath.Join("a", "b")

	if got := cfg.WorkspacePath("shader.vert"); got != filepath.Join("a", "b", "shader.vert") {
		t.Errorf("unexpected relative path %s", got)
	}
	abs := filepath.Join(t.TempDir(), "x.frag")
	if got := cfg.WorkspacePath(abs); got != abs {
		t.Errorf("absolute path should pass through, got %s", got)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Just verify it returns a non-empty path
	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}

	// Verify path is absolute
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	// No config file exists - should return empty
	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	// Create config.yaml in current directory
	if err := os.WriteFile("config.yaml", []byte("graphics:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	// Should find it now
	path = findConfigFile()
	if path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "workspace flag",
			setup: func() { *flagWorkspace = "/tmp/shaders" },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Workspace.Dir != "/tmp/shaders" {
					t.Errorf("expected workspace /tmp/shaders, got %s", cfg.Workspace.Dir)
				}
			},
			teardown: func() { *flagWorkspace = "" },
		},
		{
			name: "models and model flags",
			setup: func() {
				*flagModels = "http://localhost:8080/models"
				*flagModel = "cube.json"
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Models.Source != "http://localhost:8080/models" {
					t.Errorf("unexpected model source %s", cfg.Models.Source)
				}
				if cfg.Models.Default != "cube.json" {
					t.Errorf("unexpected default model %s", cfg.Models.Default)
				}
			},
			teardown: func() {
				*flagModels = ""
				*flagModel = ""
			},
		},
		{
			name:  "windowed flag",
			setup: func() { *flagWindowed = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Graphics.Fullscreen {
					t.Error("expected fullscreen to be false with windowed flag")
				}
			},
			teardown: func() { *flagWindowed = false },
		},
		{
			name:  "fullscreen flag",
			setup: func() { *flagFullscreen = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Graphics.Fullscreen {
					t.Error("expected fullscreen to be true with fullscreen flag")
				}
			},
			teardown: func() { *flagFullscreen = false },
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Graphics.Width != 2560 {
					t.Errorf("expected width 2560, got %d", cfg.Graphics.Width)
				}
				if cfg.Graphics.Height != 1440 {
					t.Errorf("expected height 1440, got %d", cfg.Graphics.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)

			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
graphics:
  width: 1600
  height: 900
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	// Set flag to override config file
	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Width should be from flag (1920), not file (1600)
	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Graphics.Width)
	}

	// Height should be from file (900) since no flag override
	if cfg.Graphics.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Graphics.Height)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("viewer:\n  projection: fisheye\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); err == nil {
		t.Error("expected invalid projection to be rejected")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Models.Default = "sphere.json"
	cfg.Viewer.Projection = "orthographic"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("loadFromFile: %v", err)
	}
	if loaded.Models.Default != "sphere.json" || loaded.Viewer.Projection != "orthographic" {
		t.Errorf("saved values not restored: %+v", loaded)
	}
}
