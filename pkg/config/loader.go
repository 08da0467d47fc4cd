package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads, env-expands, defaults, and validates a config file. A .env
// file next to the config is loaded first when present.
func Load(path string) (*Config, error) {
	if env := filepath.Join(filepath.Dir(path), ".env"); fileExists(env) {
		if err := godotenv.Load(env); err != nil {
			slog.Warn("Failed to load .env file", "path", env, "error", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes into a validated Config. Decoding is strict:
// unknown keys and non-mapping documents are errors, an empty document is
// an all-defaults config.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Watcher reloads the config when the file changes and hands the new
// config to the callback. Reload failures keep the previous config.
type Watcher struct {
	path     string
	onChange func(*Config)
	watcher  *fsnotify.Watcher
	done     chan struct{}
	once     sync.Once
}

func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("onChange callback is required")
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// watch the directory: editors replace files instead of writing in place
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		path:     path,
		onChange: onChange,
		watcher:  fsw,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				slog.Warn("Config reload failed, keeping previous config", "error", err)
				continue
			}
			slog.Info("Config reloaded", "path", w.path)
			w.onChange(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)
		case <-w.done:
			return
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.once.Do(func() { close(w.done) })
	return w.watcher.Close()
}
