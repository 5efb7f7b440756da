// Package seed loads initial garden plantings from header-less
// "row,col,plant" CSV lines. Bad lines are skipped, never fatal.
package seed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"go.uber.org/multierr"

	"github.com/talgya/mini-garden/internal/garden"
)

const header = "row,col,plant\n"

// ErrBadLine marks a seed line that could not be used.
var ErrBadLine = errors.New("bad seed line")

// Entry is one initial planting. Plant is the raw species name; it is
// validated when the garden is seeded.
type Entry struct {
	Row   int    `csv:"row" json:"row"`
	Col   int    `csv:"col" json:"col"`
	Plant string `csv:"plant" json:"plant"`
}

// line mirrors Entry with unparsed fields so one bad number does not
// abort the whole file.
type line struct {
	Row   string `csv:"row"`
	Col   string `csv:"col"`
	Plant string `csv:"plant"`
}

// Load reads entries from r. It returns every usable entry together with
// an aggregate of the per-line problems; callers log the error and keep
// the entries.
func Load(r io.Reader) ([]Entry, error) {
	reader := csv.NewReader(io.MultiReader(strings.NewReader(header), r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var lines []line
	if err := gocsv.UnmarshalCSV(reader, &lines); err != nil {
		return nil, fmt.Errorf("parse seed csv: %w", err)
	}

	var (
		entries []Entry
		errs    error
	)
	for i, l := range lines {
		if strings.EqualFold(l.Row, "row") && strings.EqualFold(l.Col, "col") {
			continue // the file carried its own header
		}
		e, err := l.entry()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: %w", i+1, err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, errs
}

func (l line) entry() (Entry, error) {
	row, err := strconv.Atoi(strings.TrimSpace(l.Row))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: row %q", ErrBadLine, l.Row)
	}
	col, err := strconv.Atoi(strings.TrimSpace(l.Col))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: col %q", ErrBadLine, l.Col)
	}
	plant := strings.TrimSpace(l.Plant)
	if plant == "" {
		return Entry{}, fmt.Errorf("%w: missing plant", ErrBadLine)
	}
	return Entry{Row: row, Col: col, Plant: plant}, nil
}

// LoadFile opens path and loads it. A missing file is reported with an
// error wrapping os.ErrNotExist and no entries.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Write encodes entries as header-less CSV.
func Write(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := gocsv.MarshalWithoutHeaders(entries, &buf); err != nil {
		return fmt.Errorf("encode seed csv: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// FromLayout converts generated plantings into seed entries.
func FromLayout(plantings []garden.Planting) []Entry {
	out := make([]Entry, 0, len(plantings))
	for _, p := range plantings {
		out = append(out, Entry{Row: p.Pos.Row, Col: p.Pos.Col, Plant: p.Species.String()})
	}
	return out
}

// Resolve validates an entry's species name.
func (e Entry) Resolve() (garden.Species, error) {
	return garden.ParseSpecies(e.Plant)
}
