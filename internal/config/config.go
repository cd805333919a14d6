package config

import "os"

type Config struct {
	Port             string
	ModelPath        string
	MetadataPath     string
	ClassMappingPath string
	StaticDir        string
	UploadDir        string
}

func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8000"),
		ModelPath:        getEnv("MODEL_PATH", "models/best.onnx"),
		MetadataPath:     getEnv("MODEL_METADATA_PATH", "models/metadata.json"),
		ClassMappingPath: getEnv("CLASS_MAPPING_PATH", "class_mapping.txt"),
		StaticDir:        getEnv("STATIC_DIR", "frontend"),
		UploadDir:        getEnv("UPLOAD_DIR", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
