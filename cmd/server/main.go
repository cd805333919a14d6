package main

import (
	"net/http"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"signdetect/internal/config"
	"signdetect/internal/handlers"
	"signdetect/internal/model"
)

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg := config.Load()

	// Resolve relative paths against the project root so the binary works
	// both from the repo root and from cmd/server.
	root, err := os.Getwd()
	if err != nil {
		log.Fatalf("Failed to get working directory: %v", err)
	}
	if filepath.Base(root) == "server" {
		root = filepath.Join(root, "../..")
	}

	modelPath := resolve(root, cfg.ModelPath)
	metadataPath := resolve(root, cfg.MetadataPath)
	staticDir := resolve(root, cfg.StaticDir)

	mapping := model.LoadClassMapping(resolve(root, cfg.ClassMappingPath))

	log.Infof("Loading model from: %s", modelPath)

	modelServer, err := model.NewServer(modelPath, metadataPath)
	if err != nil {
		log.Fatalf("Failed to initialize model server: %v", err)
	}
	defer modelServer.Close()

	if err := modelServer.Warmup(); err != nil {
		log.Fatalf("Model warmup failed: %v", err)
	}

	handler := handlers.NewHandler(modelServer, mapping, staticDir, resolve(root, cfg.UploadDir))

	http.HandleFunc("/", enableCORS(handler.Root))
	http.HandleFunc("/health", enableCORS(handler.Health))
	http.HandleFunc("/detect", enableCORS(handler.Detect))
	http.HandleFunc("/detect/image", enableCORS(handler.DetectImage))

	if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
		http.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
		log.Infof("Serving static files from %s", staticDir)
	}

	log.Infof("Model ready: %d classes, %d mapped names", len(modelServer.Metadata.Classes), len(mapping))
	log.Info("Endpoints:")
	log.Info("  GET  /              - Landing page")
	log.Info("  GET  /health        - Health check")
	log.Info("  POST /detect        - Detections as JSON")
	log.Info("  POST /detect/image  - Annotated image")
	log.Infof("Upload test: curl -X POST -F \"file=@sign.jpg\" http://localhost:%s/detect", cfg.Port)

	log.Infof("Server starting on port %s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func resolve(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
