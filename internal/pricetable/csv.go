package pricetable

import "strings"

// splitRecords turns delimited text into rows of fields. Quoted fields may hold
// the delimiter, line breaks and doubled quotes. CRLF, LF and lone CR all end a
// record, and records made of a single empty field are dropped.
func splitRecords(text string, delim byte) [][]string {
	text = strings.TrimPrefix(text, "\ufeff")

	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
	)
	flush := func() {
		if len(row) > 1 || (len(row) == 1 && row[0] != "") {
			rows = append(rows, row)
		}
		row = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == '"' {
			if inQuotes && i+1 < len(text) && text[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes && (c == delim || c == '\n' || c == '\r') {
			if c == '\r' && i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			row = append(row, field.String())
			field.Reset()
			if c != delim {
				flush()
			}
			continue
		}
		field.WriteByte(c)
	}
	row = append(row, field.String())
	flush()
	return rows
}
