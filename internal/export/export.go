// Package export writes statistics rows as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Format represents the export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat parses a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// Options holds configuration for file exports.
type Options struct {
	Format    Format
	FilePath  string
	Overwrite bool
}

// ToFile writes rows to the configured file, creating its directory.
func ToFile(opts Options, rows any) (err error) {
	if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if _, err := os.Stat(opts.FilePath); err == nil && !opts.Overwrite {
		return fmt.Errorf("file already exists: %s (use overwrite option to replace)", opts.FilePath)
	}

	file, err := os.Create(opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return Write(file, opts.Format, rows)
}

// Write writes rows to w. rows must be a slice of structs or of pointers
// to structs. An empty slice produces a CSV header only, or [] in JSON.
func Write(w io.Writer, format Format, rows any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		v := reflect.ValueOf(rows)
		if v.Kind() == reflect.Slice && v.IsNil() {
			rows = []struct{}{}
		}
		return enc.Encode(rows)
	case FormatCSV:
		return writeCSV(w, rows)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

type column struct {
	header string
	index  int
}

func writeCSV(w io.Writer, rows any) error {
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice {
		return fmt.Errorf("CSV export requires a slice, got %s", v.Kind())
	}
	elemType := v.Type().Elem()
	if elemType.Kind() == reflect.Ptr {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return fmt.Errorf("CSV export requires a slice of structs")
	}

	cols := columns(elemType)
	writer := csv.NewWriter(w)

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.header
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(cols))
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		if elem.Kind() == reflect.Ptr {
			if elem.IsNil() {
				continue
			}
			elem = elem.Elem()
		}
		for j, c := range cols {
			record[j] = cell(elem.Field(c.index))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// columns picks the exported fields of t. The header is the csv tag, then
// the json tag name, then the field name; "-" in either tag skips the field.
func columns(t reflect.Type) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		header := field.Name
		if tag, ok := field.Tag.Lookup("csv"); ok {
			if tag == "-" {
				continue
			}
			header = tag
		} else if tag, ok := field.Tag.Lookup("json"); ok {
			name, _, _ := strings.Cut(tag, ",")
			if name == "-" {
				continue
			}
			if name != "" {
				header = name
			}
		}
		cols = append(cols, column{header: header, index: i})
	}
	return cols
}

var timeType = reflect.TypeOf(time.Time{})

func cell(v reflect.Value) string {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if v.Type() == timeType {
		return v.Interface().(time.Time).Format(time.RFC3339)
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}
