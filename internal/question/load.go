package question

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads, parses, and validates a question dataset.
func Load(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("read questions: %w", err)
	}
	dataset, err := parse(data, path)
	if err != nil {
		return Dataset{}, err
	}
	return Normalize(dataset)
}

func parse(data []byte, path string) (Dataset, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		return parseJSON(data)
	}
	return parseYAML(data)
}

func parseJSON(data []byte) (Dataset, error) {
	var dataset Dataset
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&dataset); err != nil {
		return Dataset{}, fmt.Errorf("parse json: %w", err)
	}
	if err := decoder.Decode(new(json.RawMessage)); err != io.EOF {
		if err == nil {
			return Dataset{}, fmt.Errorf("parse json: multiple documents are not supported")
		}
		return Dataset{}, fmt.Errorf("parse json: %w", err)
	}
	return dataset, nil
}

func parseYAML(data []byte) (Dataset, error) {
	var dataset Dataset
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&dataset); err != nil {
		return Dataset{}, fmt.Errorf("parse yaml: %w", err)
	}
	if err := decoder.Decode(new(yaml.Node)); err != io.EOF {
		if err == nil {
			return Dataset{}, fmt.Errorf("parse yaml: multiple documents are not supported")
		}
		return Dataset{}, fmt.Errorf("parse yaml: %w", err)
	}
	return dataset, nil
}
