package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"aqicast/db"
	aqhttp "aqicast/http"
	"aqicast/logging"
	"aqicast/ml"
	"aqicast/monitoring"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port            int      `yaml:"port"`
		TimeoutSeconds  int      `yaml:"timeout_seconds"`
		MaxRequestBytes int64    `yaml:"max_request_bytes"`
		Origins         []string `yaml:"origins"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Model struct {
		Path    string `yaml:"path"`
		Preload bool   `yaml:"preload"`
		Watch   bool   `yaml:"watch"`
	} `yaml:"model"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	Log logging.Config `yaml:"log"`
}

func main() {
	// The zap global is a no-op until logging.Init runs, so the two
	// earliest failures report through the stdlib logger.
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logging.Init(config.Log); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer zap.L().Sync()

	if err := db.InitDB(config.Database.Path); err != nil {
		zap.S().Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	zap.S().Infof("Database initialized at %s", config.Database.Path)

	store := ml.NewStore(config.Model.Path)
	if config.Model.Preload {
		if err := store.Preload(); err != nil {
			zap.S().Fatalf("Failed to load model: %v", err)
		}
		zap.S().Infof("Model loaded from %s", config.Model.Path)
	}

	hub := monitoring.NewHub()
	defer hub.Close()

	aqhttp.SetPredictor(ml.NewPredictor(store))
	aqhttp.SetModelStore(store)
	aqhttp.SetHub(hub)
	aqhttp.SetMetrics(monitoring.NewCollector())
	if err := aqhttp.SetCacheSize(config.Cache.Size); err != nil {
		zap.S().Fatalf("Failed to initialize prediction cache: %v", err)
	}

	var watcher *fsnotify.Watcher
	if config.Model.Watch {
		watcher, err = watchArtifact(config.Model.Path)
		if err != nil {
			zap.S().Warnf("Failed to watch model artifact: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	serverConfig := aqhttp.DefaultServerConfig()
	if config.Server.Port != 0 {
		serverConfig.Port = config.Server.Port
	}
	if config.Server.TimeoutSeconds != 0 {
		serverConfig.Timeout = time.Duration(config.Server.TimeoutSeconds) * time.Second
	}
	if config.Server.MaxRequestBytes != 0 {
		serverConfig.MaxRequestBytes = config.Server.MaxRequestBytes
	}
	if len(config.Server.Origins) != 0 {
		serverConfig.AllowedOrigins = config.Server.Origins
	}

	server := aqhttp.NewServer(serverConfig)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			zap.S().Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.S().Info("Shutting down...")

	if err := server.Stop(); err != nil {
		zap.S().Warnf("Server forced to shutdown: %v", err)
	}

	zap.S().Info("Exiting")
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// watchArtifact logs when the model file changes on disk. The loaded
// model is immutable for the process lifetime, so a change only means
// a restart is needed to pick it up.
func watchArtifact(modelPath string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(modelPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(modelPath)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) == target && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					zap.S().Warnf("Model artifact changed on disk; restart to pick up the new model")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				zap.S().Warnf("Artifact watcher error: %v", err)
			}
		}
	}()
	return watcher, nil
}
