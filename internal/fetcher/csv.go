package fetcher

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeAll reads r fully and returns valid UTF-8: byte-order marks are
// stripped, and content that is not valid UTF-8 is transcoded from Latin-1,
// the encoding legacy BLS exports still use.
func DecodeAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "csv: read input")
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		data, err = charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, eris.Wrap(err, "csv: transcode latin-1")
		}
	}
	return data, nil
}

// CSVOptions configures the CSV parser.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

func newReader(data []byte, opts CSVOptions) *csv.Reader {
	reader := csv.NewReader(bytes.NewReader(data))
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields
	return reader
}

// ReadCSV decodes and parses an entire CSV stream. The first row is
// returned as the header.
func ReadCSV(r io.Reader, opts CSVOptions) (header []string, rows [][]string, err error) {
	data, err := DecodeAll(r)
	if err != nil {
		return nil, nil, err
	}

	reader := newReader(data, opts)
	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, eris.Wrap(err, "csv: parse")
	}
	if len(all) == 0 {
		return nil, nil, eris.New("csv: empty input")
	}

	if opts.TrimSpace {
		for _, row := range all {
			for i, field := range row {
				row[i] = strings.TrimSpace(field)
			}
		}
	}

	return all[0], all[1:], nil
}

// ReadCSVFile opens and parses a CSV file on disk.
func ReadCSVFile(path string, opts CSVOptions) (header []string, rows [][]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	header, rows, err = ReadCSV(f, opts)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "csv: file %s", path)
	}
	return header, rows, nil
}

// StreamCSV decodes a CSV stream and sends rows to a channel. The header
// row is sent first when opts has no special handling; callers that need
// the header should use ReadCSV instead. Both channels are closed when
// processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		data, err := DecodeAll(r)
		if err != nil {
			errCh <- err
			return
		}

		reader := newReader(data, opts)
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
