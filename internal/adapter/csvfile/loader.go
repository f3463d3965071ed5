// Package csvfile loads delimited case-report files into domain tables.
package csvfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/phu-heatmap/internal/domain"
)

// utf8BOM prefixes files exported by Excel and the Ontario open-data portal.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Loader reads a CSV file with a header row.
// It implements pipeline.TableSource.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a CSV loader.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load opens path and reads it into a table.
func (l *Loader) Load(ctx context.Context, path string) (domain.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Table{}, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	t, err := Read(ctx, f)
	if err != nil {
		return domain.Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	l.logger.Info("input loaded", "path", path, "rows", len(t.Rows), "columns", len(t.Header))
	return t, nil
}

// Read parses CSV from r. The first record is the header. A leading UTF-8 BOM
// is stripped. Every row must have as many fields as the header.
func Read(ctx context.Context, r io.Reader) (domain.Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.Table{}, errors.New("empty file: no header row")
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("header: %w", err)
	}

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return domain.Table{}, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Table{}, err
		}
		rows = append(rows, row)
	}

	return domain.Table{Header: header, Rows: rows}, nil
}
