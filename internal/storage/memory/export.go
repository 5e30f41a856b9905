package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anchorwatch/anchorsim/internal/model"
)

// RunExport is the root JSON structure for an exported run.
type RunExport struct {
	Tag         string             `json:"tag"`
	StartTime   string             `json:"startTime"`
	EndTime     string             `json:"endTime,omitempty"`
	TickSeconds float64            `json:"tickSeconds"`
	Ticks       []model.TickState  `json:"ticks"`
	StageEvents []model.StageEvent `json:"stageEvents"`
}

// exportJSON writes the run to a (optionally gzipped) JSON file. Caller
// holds the mutex.
func (b *Backend) exportJSON() error {
	tag := b.session.Tag
	if tag == "" {
		tag = "run"
	}
	tag = strings.ReplaceAll(tag, " ", "_")
	timestamp := b.session.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", tag, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", tag, timestamp)
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	export := RunExport{
		Tag:         b.session.Tag,
		StartTime:   b.session.StartTime.Format("2006-01-02T15:04:05Z07:00"),
		TickSeconds: b.session.TickSeconds,
		Ticks:       b.ticks,
		StageEvents: b.stageEvents,
	}
	if b.session.EndTime.Valid {
		export.EndTime = b.session.EndTime.Time.Format("2006-01-02T15:04:05Z07:00")
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.exportedPath = outputPath
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return nil
}

func writeGzipJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	enc := json.NewEncoder(gz)
	if err := enc.Encode(v); err != nil {
		gz.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gz.Close()
}
