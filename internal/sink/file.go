package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/proseflow/proseflow/internal/expr"
)

// FileSink writes values to local files. A .json destination gets a
// structure-preserving, round-trippable serialization; anything else is
// appended as one line of text.
type FileSink struct {
	baseDir string
}

// NewFileSink resolves relative destinations under baseDir. Empty baseDir
// means the process working directory.
func NewFileSink(baseDir string) *FileSink {
	return &FileSink{baseDir: baseDir}
}

func (f *FileSink) Name() string { return "file" }

func (f *FileSink) Write(ctx context.Context, dest string, value any) error {
	path := dest
	if f.baseDir != "" && !filepath.IsAbs(dest) {
		path = filepath.Join(f.baseDir, dest)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("file sink: %w", err)
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return fmt.Errorf("file sink: marshal: %w", err)
		}
		if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("file sink: %w", err)
		}
		return nil
	}

	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	defer func() { _ = fh.Close() }()
	if _, err := fh.WriteString(expr.FormatValue(value) + "\n"); err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	return nil
}
