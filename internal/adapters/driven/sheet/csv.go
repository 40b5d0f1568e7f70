package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"
)

// utf8BOM marks csv files saved by Excel.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	first, _ := br.Peek(4096)
	reader := csv.NewReader(br)
	reader.Comma = detectComma(string(first))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.ReadAll()
}

// detectComma picks the delimiter that occurs most often in the first line.
func detectComma(sample string) rune {
	line, _, _ := strings.Cut(sample, "\n")
	best, count := ';', -1
	for _, c := range []rune{';', ',', '\t'} {
		if n := strings.Count(line, string(c)); n > count {
			best, count = c, n
		}
	}
	return best
}

func writeCSV(w io.Writer, comma rune, records [][]string) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	writer.Comma = comma
	writer.UseCRLF = true
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	return writer.Error()
}
