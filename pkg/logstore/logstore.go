package logstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/itohio/gardenmeter/pkg/calibration"
	"github.com/itohio/gardenmeter/pkg/measurement"
)

const (
	// DefaultFileName is the log file created inside the data directory.
	DefaultFileName = "sensor_data.csv"

	// Header is the first row of every log file. Column names are consumed by
	// existing tooling and must not change.
	Header = "Zeitstempel,Bodenfeuchte-Rohwert,Bodenstatus,Licht-Rohwert,Lichtintensitaet(W/m2),Temperatur(C),Luftfeuchtigkeit(%)"

	numColumns = 7
)

var (
	// ErrNotFound is returned by Export when the log file does not exist.
	ErrNotFound = errors.New("log file not found")
	// ErrMalformedRow is returned when a log row cannot be decoded.
	ErrMalformedRow = errors.New("malformed log row")
)

// Entry describes one file of the backing directory.
type Entry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Store is an append-only CSV log of measurements. Every Append opens and
// closes the file, so nothing is held open between cycles.
type Store struct {
	dir    string
	name   string
	logger *slog.Logger

	mu sync.Mutex
}

// New creates a Store writing dir/name. An empty name selects DefaultFileName.
func New(dir, name string, logger *slog.Logger) *Store {
	if name == "" {
		name = DefaultFileName
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, name: name, logger: logger}
}

// Path returns the full path of the log file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, s.name)
}

// Initialize creates the log file with its header row if it does not exist yet.
// An existing file is left untouched.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", s.dir, err)
	}

	f, err := os.OpenFile(s.Path(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			if info, statErr := os.Stat(s.Path()); statErr == nil {
				s.logger.Info("Data file already exists", "path", s.Path(), "size", info.Size())
			}
			return nil
		}
		return fmt.Errorf("failed to create data file: %w", err)
	}

	if _, err := io.WriteString(f, Header+"\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync data file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close data file: %w", err)
	}

	s.logger.Info("Created new data file", "path", s.Path())
	return nil
}

// Append writes one row for m. The file must have been created by Initialize;
// a missing file is reported as an error rather than recreated without header.
func (s *Store) Append(m measurement.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.Path(), os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}

	if _, err := io.WriteString(f, FormatRow(m)+"\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to append row: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync data file: %w", err)
	}
	return f.Close()
}

// Export opens the log file for reading. The caller must close the reader.
func (s *Store) Export() (io.ReadCloser, int64, error) {
	f, err := os.Open(s.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("failed to open data file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("failed to stat data file: %w", err)
	}
	return f, info.Size(), nil
}

// ListEntries lists the regular files of the data directory with their sizes.
func (s *Store) ListEntries() ([]Entry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list data directory: %w", err)
	}

	result := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		result = append(result, Entry{Name: e.Name(), Size: info.Size()})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// FormatRow serializes a measurement as one CSV row without line terminator.
// Fields are not quoted; none of the produced values contain commas.
func FormatRow(m measurement.Measurement) string {
	return fmt.Sprintf("%s,%d,%s,%d,%.2f,%.2f,%.2f",
		m.Timestamp,
		m.SoilRaw,
		m.SoilStatus,
		m.LightRaw,
		m.Irradiance,
		m.Temperature,
		m.Humidity,
	)
}

// ParseRow decodes the seven fields of a log row.
func ParseRow(fields []string) (measurement.Measurement, error) {
	if len(fields) != numColumns {
		return measurement.Measurement{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRow, numColumns, len(fields))
	}

	soil, err := strconv.Atoi(fields[1])
	if err != nil {
		return measurement.Measurement{}, fmt.Errorf("%w: soil raw: %v", ErrMalformedRow, err)
	}
	status, err := calibration.ParseSoilStatus(fields[2])
	if err != nil {
		return measurement.Measurement{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	light, err := strconv.Atoi(fields[3])
	if err != nil {
		return measurement.Measurement{}, fmt.Errorf("%w: light raw: %v", ErrMalformedRow, err)
	}

	var floats [3]float64
	for i := range floats {
		floats[i], err = strconv.ParseFloat(fields[4+i], 64)
		if err != nil {
			return measurement.Measurement{}, fmt.Errorf("%w: column %d: %v", ErrMalformedRow, 5+i, err)
		}
	}

	return measurement.Measurement{
		Timestamp:   fields[0],
		SoilRaw:     soil,
		SoilStatus:  status,
		LightRaw:    light,
		Irradiance:  floats[0],
		Temperature: floats[1],
		Humidity:    floats[2],
	}, nil
}

// ReadAll decodes an exported log. The header row is skipped and malformed
// rows are returned as an error together with the rows decoded so far.
func ReadAll(r io.Reader) ([]measurement.Measurement, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var result []measurement.Measurement
	line := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("failed to read log: %w", err)
		}
		line++

		if line == 1 && len(fields) > 0 && fields[0] == "Zeitstempel" {
			continue
		}

		m, err := ParseRow(fields)
		if err != nil {
			return result, fmt.Errorf("line %d: %w", line, err)
		}
		result = append(result, m)
	}
}
