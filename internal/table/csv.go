package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// naValues are the cell strings read as null, matching pandas' default na_values.
var naValues = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// ErrNoColumns is returned for input with no header row.
var ErrNoColumns = errors.New("no columns to parse from file")

// ReadCSV parses comma-separated input with a header row and infers a dtype
// per column.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoColumns
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	raw := make([][]string, len(header))
	line := 1
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		line++
		for j := range header {
			raw[j] = append(raw[j], rec[j])
		}
	}
	cols := make([]*Column, len(header))
	for j, name := range header {
		cols[j] = parseColumn(name, raw[j])
	}
	return New(cols...)
}

func parseColumn(name string, cells []string) *Column {
	vals := make([]any, len(cells))
	isInt, isFloat, isBool := true, true, true
	nonNull := 0
	for _, s := range cells {
		if _, na := naValues[s]; na {
			continue
		}
		nonNull++
		t := strings.TrimSpace(s)
		if isInt {
			if _, err := strconv.ParseInt(t, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat {
			if _, err := strconv.ParseFloat(t, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if _, ok := parseBool(t); !ok {
				isBool = false
			}
		}
	}
	for i, s := range cells {
		if _, na := naValues[s]; na {
			continue
		}
		t := strings.TrimSpace(s)
		switch {
		case nonNull > 0 && isInt:
			n, _ := strconv.ParseInt(t, 10, 64)
			vals[i] = n
		case nonNull > 0 && isFloat:
			f, _ := strconv.ParseFloat(t, 64)
			vals[i] = f
		case nonNull > 0 && isBool:
			b, _ := parseBool(t)
			vals[i] = b
		default:
			vals[i] = s
		}
	}
	return NewColumn(name, vals)
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "True", "TRUE", "true":
		return true, true
	case "False", "FALSE", "false":
		return false, true
	}
	return false, false
}
