package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aluiziolira/go-scrape-prices/models"
)

// OutputWriter persists search results.
type OutputWriter interface {
	Write(result *models.SearchResult) error
	Close() error
	Validate() error
	// Paths lists the files being written.
	Paths() []string
}

// NewWriter builds the writer for format ("csv", "json" or "dual"). Dual
// output derives both file names from filename's base.
func NewWriter(format, filename string) (OutputWriter, error) {
	var (
		w   OutputWriter
		err error
	)
	switch format {
	case "csv":
		w, err = NewCSVWriter(filename)
	case "json":
		w, err = NewJSONWriter(filename)
	case "dual":
		base := filename[:len(filename)-len(filepath.Ext(filename))]
		w, err = NewDualWriter(base+".csv", base+".jsonl")
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}

// CSVWriter writes one row per listing, grouped.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	header := []string{"keyword", "group", "best_price", "store", "name", "price", "original_price", "rating", "reviews_count", "in_stock", "url", "image_url"}
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends every grouped listing of result.
func (cw *CSVWriter) Write(result *models.SearchResult) error {
	if result == nil {
		return nil
	}
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, group := range result.Groups {
		for _, listing := range group.Listings {
			original := ""
			if listing.OriginalPrice != nil {
				original = strconv.Itoa(*listing.OriginalPrice)
			}
			record := []string{
				result.Keyword,
				group.Name,
				strconv.Itoa(group.BestPrice),
				listing.Source,
				listing.Name,
				strconv.Itoa(listing.Price),
				original,
				strconv.FormatFloat(listing.Rating, 'f', 1, 64),
				strconv.Itoa(listing.ReviewsCount),
				strconv.FormatBool(listing.InStock),
				listing.URL,
				listing.ImageURL,
			}
			if err := cw.writer.Write(record); err != nil {
				return fmt.Errorf("write csv record: %w", err)
			}
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// Paths returns the CSV file name.
func (cw *CSVWriter) Paths() []string {
	return []string{cw.file.Name()}
}

// JSONWriter writes one search result per line.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends result in JSONL format.
func (jw *JSONWriter) Write(result *models.SearchResult) error {
	if result == nil {
		return nil
	}
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.encoder.Encode(result); err != nil {
		return fmt.Errorf("encode json record: %w", err)
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func (jw *JSONWriter) Paths() []string {
	return []string{jw.file.Name()}
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
