package model

import (
	"bufio"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// LoadClassMapping reads a class-mapping file with one `KEY = VALUE` entry per
// line. Blank lines and lines without '=' are skipped; values may themselves
// contain '=' (only the first one splits); duplicate keys keep the last value.
// A missing or unreadable file degrades to an empty mapping, never an error.
func LoadClassMapping(path string) ClassMapping {
	mapping := make(ClassMapping)

	f, err := os.Open(path)
	if err != nil {
		log.Warnf("Class mapping file %q not loaded: %v. Using class codes only.", path, err)
		return mapping
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.Contains(line, "=") {
			continue
		}

		key, value, _ := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		mapping[key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		log.Warnf("Error reading class mapping %q: %v. Using class codes only.", path, err)
	}

	return mapping
}
