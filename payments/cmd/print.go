package cmd

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/plenert/payments"
	"github.com/plenert/payments/payments/internal/fastcolor"
	"golang.org/x/term"
)

const (
	newLine    = "\n"
	minColumns = 50
)

var csvHeader = []string{"client", "available", "held", "total", "locked"}

// PrintCSV writes one line per account after a header line.
func PrintCSV(w io.Writer, rows []payments.AccountRow) error {
	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(csvHeader); err != nil {
		return err
	}

	record := make([]string, len(csvHeader))
	for _, row := range rows {
		record[0] = strconv.Itoa(int(row.Client))
		record[1] = row.Available.StringFixedBank(payments.OutputPlaces)
		record[2] = row.Held.StringFixedBank(payments.OutputPlaces)
		record[3] = row.Total.StringFixedBank(payments.OutputPlaces)
		record[4] = strconv.FormatBool(row.Locked)
		if err := csvWriter.Write(record); err != nil {
			return err
		}
	}

	// Write any buffered data to the underlying writer.
	csvWriter.Flush()
	return csvWriter.Error()
}

// PrintTable prints accounts as aligned columns fitted to a width of
// columns. Locked accounts are drawn in lockedColor.
func PrintTable(w io.Writer, rows []payments.AccountRow, columns int, lockedColor fastcolor.Color) error {
	if columns < minColumns {
		fmt.Fprintf(os.Stderr, "warning: `columns` too small, setting to %d\n", minColumns)
		columns = minColumns
	}
	// client and locked take 6 each, 4 separating spaces, the rest is
	// shared by the three amounts
	amountWidth := (columns - 6 - 6 - 4) / 3

	colorHeader := fastcolor.Bold
	if lockedColor == fastcolor.None {
		colorHeader = fastcolor.None
	}

	buf := bufio.NewWriter(w)
	colorHeader.WriteStringFixed(buf, "client", 6, true)
	for _, name := range csvHeader[1:4] {
		buf.WriteString(" ")
		colorHeader.WriteStringFixed(buf, name, amountWidth, true)
	}
	buf.WriteString(" ")
	colorHeader.WriteStringFixed(buf, "locked", 6, true)
	buf.WriteString(newLine)
	buf.WriteString(strings.Repeat("-", 6+6+4+3*amountWidth))
	buf.WriteString(newLine)

	for _, row := range rows {
		rowColor := fastcolor.None
		if row.Locked {
			rowColor = lockedColor
		}
		rowColor.WriteStringFixed(buf, strconv.Itoa(int(row.Client)), 6, true)
		for _, amount := range []string{
			row.Available.StringFixedBank(payments.OutputPlaces),
			row.Held.StringFixedBank(payments.OutputPlaces),
			row.Total.StringFixedBank(payments.OutputPlaces),
		} {
			buf.WriteString(" ")
			rowColor.WriteStringFixed(buf, amount, amountWidth, true)
		}
		buf.WriteString(" ")
		rowColor.WriteStringFixed(buf, strconv.FormatBool(row.Locked), 6, true)
		buf.WriteString(newLine)
	}
	return buf.Flush()
}

// terminal reports whether w is a terminal, and its width if it is.
func terminal(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return false, 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return true, 0
	}
	return true, width
}
