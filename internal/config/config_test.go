package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "MODEL_PATH", "MODEL_METADATA_PATH", "CLASS_MAPPING_PATH", "STATIC_DIR", "UPLOAD_DIR"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8000" {
		t.Errorf("Expected default port 8000, got %s", cfg.Port)
	}
	if cfg.ModelPath != "models/best.onnx" {
		t.Errorf("Unexpected default model path: %s", cfg.ModelPath)
	}
	if cfg.MetadataPath != "models/metadata.json" {
		t.Errorf("Unexpected default metadata path: %s", cfg.MetadataPath)
	}
	if cfg.ClassMappingPath != "class_mapping.txt" {
		t.Errorf("Unexpected default class mapping path: %s", cfg.ClassMappingPath)
	}
	if cfg.StaticDir != "frontend" {
		t.Errorf("Unexpected default static dir: %s", cfg.StaticDir)
	}
	if cfg.UploadDir != "" {
		t.Errorf("Expected empty default upload dir, got %s", cfg.UploadDir)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MODEL_PATH", "/opt/models/signs.onnx")
	t.Setenv("CLASS_MAPPING_PATH", "/etc/signdetect/classes.txt")

	cfg := Load()

	if cfg.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Port)
	}
	if cfg.ModelPath != "/opt/models/signs.onnx" {
		t.Errorf("Env override ignored for model path: %s", cfg.ModelPath)
	}
	if cfg.ClassMappingPath != "/etc/signdetect/classes.txt" {
		t.Errorf("Env override ignored for class mapping path: %s", cfg.ClassMappingPath)
	}
}
