package dataset

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// StreamCSV reads CSV records and sends them on a channel. Errors are sent on the error
// channel. Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, delimiter rune) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if delimiter != 0 {
			reader.Comma = delimiter
		}
		reader.FieldsPerRecord = -1 // allow variable fields
		reader.LazyQuotes = true

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

// ReadCSV reads the requested columns from CSV whose first record is the header.
func ReadCSV(ctx context.Context, r io.Reader, opts Options) ([]Column, error) {
	if opts.Charset != "" {
		enc, err := htmlindex.Get(opts.Charset)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: unknown charset %q", opts.Charset)
		}
		r = enc.NewDecoder().Reader(r)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rowCh, errCh := StreamCSV(ctx, r, opts.Delimiter)

	var b *tableBuilder
	for record := range rowCh {
		if b == nil {
			var err error
			if b, err = newTableBuilder(record, opts); err != nil {
				return nil, err
			}
			continue
		}
		if err := b.add(record); err != nil {
			return nil, err
		}
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "dataset: read csv")
	}
	if b == nil {
		return nil, eris.New("dataset: csv has no header row")
	}
	return b.columns(), nil
}
