package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"signdetect/internal/model"
)

const maxUploadBytes = 10 << 20

// Detector runs inference on one image file.
type Detector interface {
	Detect(path string, opts model.DetectOptions) (*model.DetectionBatch, error)
}

type Handler struct {
	detector  Detector
	mapping   model.ClassMapping
	staticDir string
	uploadDir string
}

func NewHandler(detector Detector, mapping model.ClassMapping, staticDir, uploadDir string) *Handler {
	return &Handler{
		detector:  detector,
		mapping:   mapping,
		staticDir: staticDir,
		uploadDir: uploadDir,
	}
}

type detectResponse struct {
	Filename       string            `json:"filename"`
	Detections     []model.Detection `json:"detections"`
	DetectionCount int               `json:"detection_count"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"status":       "healthy",
		"model_loaded": h.detector != nil,
	}, http.StatusOK)
}

// Root serves the frontend index when a static directory is configured,
// otherwise a small JSON status body. Only the exact "/" path matches.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	index := filepath.Join(h.staticDir, "index.html")
	if _, err := os.Stat(index); err == nil {
		http.ServeFile(w, r, index)
		return
	}

	respondJSON(w, map[string]any{
		"message": "Traffic Sign Detection API",
		"status":  "running",
		"endpoints": map[string]string{
			"detect": "/detect",
			"health": "/health",
		},
	}, http.StatusOK)
}

// Detect returns the detections for one uploaded image as JSON.
func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	batch, filename, ok := h.runDetection(w, r)
	if !ok {
		return
	}

	respondJSON(w, detectResponse{
		Filename:       filename,
		Detections:     batch.Detections,
		DetectionCount: len(batch.Detections),
	}, http.StatusOK)
}

// DetectImage returns the uploaded image with detections drawn onto it.
func (h *Handler) DetectImage(w http.ResponseWriter, r *http.Request) {
	batch, filename, ok := h.runDetection(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", "annotated_"+filename))
	if _, err := w.Write(batch.Annotated); err != nil {
		log.Errorf("Failed to write annotated image: %v", err)
	}
}

// runDetection implements the upload contract shared by both detection
// endpoints: validate the request, persist the upload to a private temp file,
// run the detector, and remove the file on every path. On failure the error
// response has already been written and ok is false.
func (h *Handler) runDetection(w http.ResponseWriter, r *http.Request) (batch *model.DetectionBatch, filename string, ok bool) {
	if r.Method != http.MethodPost {
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, "", false
	}
	if h.detector == nil {
		respondError(w, "Model not loaded", http.StatusServiceUnavailable)
		return nil, "", false
	}

	conf, err := parseThreshold(r, "conf", model.DefaultConf)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return nil, "", false
	}
	iou, err := parseThreshold(r, "iou", model.DefaultIoU)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return nil, "", false
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file uploaded. Use 'file' as the form field name", http.StatusBadRequest)
		return nil, "", false
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		respondError(w, fmt.Sprintf("File must be an image. Got: %s", contentType), http.StatusBadRequest)
		return nil, "", false
	}

	log.Infof("Received %s (%d bytes)", header.Filename, header.Size)

	tmpPath, err := h.saveUpload(file, header.Filename)
	if err != nil {
		log.Errorf("Failed to store upload %s: %v", header.Filename, err)
		respondError(w, "Failed to store upload", http.StatusInternalServerError)
		return nil, "", false
	}
	defer os.Remove(tmpPath)

	batch, err = h.detector.Detect(tmpPath, model.DetectOptions{
		Conf:    conf,
		IoU:     iou,
		Mapping: h.mapping,
	})
	if err != nil {
		log.Errorf("Detection error for %s: %v", header.Filename, err)
		respondError(w, fmt.Sprintf("Detection failed: %v", err), http.StatusInternalServerError)
		return nil, "", false
	}

	return batch, header.Filename, true
}

// saveUpload writes the upload to a uniquely named file, keeping the original
// extension so inspecting the temp dir still tells you what landed there.
func (h *Handler) saveUpload(file multipart.File, filename string) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}

	dir := h.uploadDir
	if dir == "" {
		dir = os.TempDir()
	}

	path := filepath.Join(dir, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func parseThreshold(r *http.Request, name string, fallback float32) (float32, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil || math.IsNaN(v) || v < 0 || v > 1 {
		return 0, fmt.Errorf("Invalid %s value %q: must be a number between 0 and 1", name, raw)
	}
	return float32(v), nil
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
