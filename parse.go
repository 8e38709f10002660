package payments

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alfredxing/calc/compute"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyInput  = errors.New("input has no header line")
	ErrBadHeader   = errors.New("header must name type, client and tx columns")
	ErrAmountScale = errors.New("amount exponent out of range")
)

// maxScale bounds the exponent of a parsed amount in both directions.
const maxScale = 28

// expressionPlaces is the precision kept from a float expression result.
const expressionPlaces = 12

// MalformedError describes a line that could not be turned into a Record.
// Decoding continues with the next line.
type MalformedError struct {
	Line int
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("line %d: %s: %v", e.Line, ErrMalformedRecord, e.Err)
}

func (e *MalformedError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

// ParseRecordsFile reads all well-formed records from the named source. See
// OpenSource for the accepted names.
func ParseRecordsFile(filename string, opts ...ParseOption) (records []Record, err error) {
	src, err := OpenSource(filename)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return ParseRecords(src, opts...)
}

// ParseRecords reads all well-formed records from r. Malformed lines are
// dropped; only a missing header or a read failure is returned as an error.
func ParseRecords(r io.Reader, opts ...ParseOption) (records []Record, err error) {
	parseRecords(NewDecoder(r, opts...), func(rec Record, e error) (stop bool) {
		var malformed *MalformedError
		switch {
		case e == nil:
			records = append(records, rec)
		case errors.As(e, &malformed):
		default:
			err = e
			stop = true
		}
		return
	})

	return
}

// ParseRecordsAsync decodes r in a goroutine. Records arrive on c in input
// order. Malformed lines and a fatal error, if any, arrive on e, which
// finally receives nil before both channels are closed. Callers must keep
// receiving from both channels until e yields nil.
func ParseRecordsAsync(r io.Reader, opts ...ParseOption) (c chan Record, e chan error) {
	c = make(chan Record)
	e = make(chan error)

	go func() {
		parseRecords(NewDecoder(r, opts...), func(rec Record, err error) (stop bool) {
			if err != nil {
				e <- err
				var malformed *MalformedError
				return !errors.As(err, &malformed)
			}
			c <- rec
			return
		})

		e <- nil
		close(c)
		close(e)
	}()
	return c, e
}

func parseRecords(d *Decoder, callback func(r Record, err error) (stop bool)) {
	for {
		rec, err := d.Next()
		if err == io.EOF {
			return
		}
		if callback(rec, err) {
			return
		}
	}
}

// ParseOption configures a Decoder.
type ParseOption func(*Decoder)

// WithAmountExpressions lets an amount be written as a parenthesised
// arithmetic expression such as "(2.5 * 4)".
func WithAmountExpressions() ParseOption {
	return func(d *Decoder) {
		d.expressions = true
	}
}

type columns struct {
	kind, client, tx, amount int
}

// Decoder reads records from CSV input with a header line naming the
// type, client, tx and amount columns in any order.
type Decoder struct {
	r           *csv.Reader
	cols        columns
	header      bool
	headerErr   error
	expressions bool
	line        int
}

// NewDecoder returns a decoder that reads from r.
func NewDecoder(r io.Reader, opts ...ParseOption) *Decoder {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true
	d := &Decoder{r: reader}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next record. A line that cannot be decoded yields a
// *MalformedError and Next may be called again. At the end of input Next
// returns io.EOF.
//
// A header that does not name the required columns is reported once as
// ErrBadHeader; every following line is then a *MalformedError.
func (d *Decoder) Next() (Record, error) {
	if !d.header && d.headerErr == nil {
		if err := d.readHeader(); err != nil {
			return Record{}, err
		}
	}

	fields, err := d.r.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			d.line = perr.Line
			return Record{}, &MalformedError{Line: perr.Line, Err: perr.Err}
		}
		return Record{}, err
	}
	d.line, _ = d.r.FieldPos(0)
	if d.headerErr != nil {
		return Record{}, &MalformedError{Line: d.line, Err: d.headerErr}
	}

	rec, err := d.record(fields)
	if err != nil {
		return Record{}, &MalformedError{Line: d.line, Err: err}
	}
	return rec, nil
}

// Line returns the input line of the record last returned by Next.
func (d *Decoder) Line() int {
	return d.line
}

func (d *Decoder) readHeader() error {
	fields, err := d.r.Read()
	if err == io.EOF {
		return ErrEmptyInput
	}
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		d.headerErr = fmt.Errorf("%w: %w", ErrBadHeader, perr)
		return d.headerErr
	}
	if err != nil {
		return err
	}

	d.cols = columns{kind: -1, client: -1, tx: -1, amount: -1}
	for i, name := range fields {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "type":
			d.cols.kind = i
		case "client":
			d.cols.client = i
		case "tx":
			d.cols.tx = i
		case "amount":
			d.cols.amount = i
		}
	}
	if d.cols.kind < 0 || d.cols.client < 0 || d.cols.tx < 0 {
		d.headerErr = fmt.Errorf("%w: got %q", ErrBadHeader, strings.Join(fields, ","))
		return d.headerErr
	}

	d.header = true
	return nil
}

func field(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[idx])
}

func (d *Decoder) record(fields []string) (rec Record, err error) {
	if need := max(d.cols.kind, d.cols.client, d.cols.tx) + 1; len(fields) < need {
		return rec, fmt.Errorf("expected at least %d fields, got %d", need, len(fields))
	}

	if rec.Kind, err = ParseKind(field(fields, d.cols.kind)); err != nil {
		return rec, err
	}

	client, err := strconv.ParseUint(field(fields, d.cols.client), 10, 16)
	if err != nil {
		return rec, fmt.Errorf("client: %w", err)
	}
	rec.Client = uint16(client)

	tx, err := strconv.ParseUint(field(fields, d.cols.tx), 10, 32)
	if err != nil {
		return rec, fmt.Errorf("tx: %w", err)
	}
	rec.Tx = uint32(tx)

	if s := field(fields, d.cols.amount); s != "" {
		amount, err := d.parseAmount(s)
		if err != nil {
			return rec, fmt.Errorf("amount: %w", err)
		}
		rec.Amount = &amount
	}
	return rec, nil
}

func (d *Decoder) parseAmount(s string) (amount decimal.Decimal, err error) {
	if d.expressions && strings.HasPrefix(s, "(") {
		v, err := compute.Evaluate(s)
		if err != nil {
			return decimal.Zero, err
		}
		amount = decimal.NewFromFloat(v).Round(expressionPlaces)
	} else if amount, err = decimal.NewFromString(s); err != nil {
		return decimal.Zero, err
	}

	// Add and Sub rescale to the smaller exponent.
	if exp := amount.Exponent(); exp < -maxScale || exp > maxScale {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrAmountScale, s)
	}
	return amount, nil
}
