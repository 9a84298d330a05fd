package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/pkg/logger"
)

// Loader errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported sample file format")
	ErrNoRecords         = errors.New("sample file holds no records")
)

// sampleFile is the document form of a sample file. A bare list of records
// is accepted as well.
type sampleFile struct {
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string            `json:"version,omitempty" yaml:"version,omitempty"`
	Records     []model.RawRecord `json:"sample_artists" yaml:"sample_artists"`
}

// LoadFile reads records from a .json, .yaml or .yml file.
func LoadFile(path string) ([]model.RawRecord, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("read sample file: %w", err)
	}
	recs, err := Parse(data, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// Parse decodes records in the format named by ext.
func Parse(data []byte, ext string) ([]model.RawRecord, error) {
	switch ext {
	case ".json":
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
		// Re-encode so YAML files accept the same legacy keys as JSON.
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("convert yaml: %w", err)
		}
		data = converted
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	var recs []model.RawRecord
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
	} else {
		var doc sampleFile
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("decode sample document: %w", err)
		}
		recs = doc.Records
	}
	if len(recs) == 0 {
		return nil, ErrNoRecords
	}
	return recs, nil
}

// DefaultSamples returns the two built-in sample artists.
func DefaultSamples() []model.RawRecord {
	pop := model.RawRecord{ArtistID: "sample_001", Category: string(model.CategoryPop), Period: string(model.Period2024Q1)}
	pop.Set(model.FieldRevenue, 8_500_000)
	pop.Set(model.FieldSongCount, 4)
	pop.Set(model.FieldDanceability, 0.85)
	pop.Set(model.FieldEnergy, 0.78)
	pop.Set(model.FieldValence, 0.92)
	pop.Set(model.FieldTempo, 128)
	pop.Set(model.FieldAcousticness, 0.05)
	pop.Set(model.FieldInstrumentalness, 0.0)
	pop.Set(model.FieldLiveness, 0.15)
	pop.Set(model.FieldSpeechiness, 0.08)
	pop.Set(model.FieldLoudness, -4.2)
	pop.Set(model.FieldDuration, 195_000)

	hipHop := model.RawRecord{ArtistID: "sample_002", Category: string(model.CategoryHipHop), Period: string(model.Period2024Q1)}
	hipHop.Set(model.FieldRevenue, 12_300_000)
	hipHop.Set(model.FieldSongCount, 6)
	hipHop.Set(model.FieldDanceability, 0.92)
	hipHop.Set(model.FieldEnergy, 0.88)
	hipHop.Set(model.FieldValence, 0.65)
	hipHop.Set(model.FieldTempo, 145)
	hipHop.Set(model.FieldAcousticness, 0.02)
	hipHop.Set(model.FieldInstrumentalness, 0.1)
	hipHop.Set(model.FieldLiveness, 0.25)
	hipHop.Set(model.FieldSpeechiness, 0.35)
	hipHop.Set(model.FieldLoudness, -3.8)
	hipHop.Set(model.FieldDuration, 238_000)

	return []model.RawRecord{pop, hipHop}
}

// SaveFile writes recs as a sample document. An empty path picks a
// timestamped name in the working directory. It returns the path written.
func SaveFile(ctx context.Context, path string, recs []model.RawRecord) (string, error) {
	if len(recs) == 0 {
		return "", ErrNoRecords
	}
	if path == "" {
		path = "sample_records_" + time.Now().Format("20060102_150405") + ".json"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPermission); err != nil {
			return "", fmt.Errorf("create directory: %w", err)
		}
	}

	doc := sampleFile{Description: "vinyl sample records", Version: "1.0", Records: recs}
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(doc)
	default:
		data, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("encode sample file: %w", err)
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return "", fmt.Errorf("write sample file: %w", err)
	}
	logger.Named("seed").Info(ctx, "records saved to file",
		logger.String("filename", path),
		logger.Int("count", len(recs)))
	return path, nil
}
