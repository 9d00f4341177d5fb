package inventory

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var columnAliases = map[string][]string{
	"code":        {"id", "code", "codigo"},
	"description": {"descricao", "description"},
	"price":       {"preco", "price"},
	"stock":       {"estoque", "stock"},
}

// LoadCSV reads a catalogue file. See ParseCSV for the accepted layout.
func LoadCSV(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalogue csv: %w", err)
	}
	defer f.Close()
	return ParseCSV(f)
}

// ParseCSV reads a comma separated catalogue with a header row. Columns are
// matched by name (Portuguese or English); rows without a description are
// skipped, blank price or stock read as zero.
func ParseCSV(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := mapColumns(header)
	if _, ok := cols["description"]; !ok {
		return nil, fmt.Errorf("csv header %q has no description column", strings.Join(header, ","))
	}

	var items []Item
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		item := Item{
			Code:        field(record, cols, "code"),
			Description: field(record, cols, "description"),
		}
		if item.Description == "" {
			continue
		}
		if item.Price, err = parsePrice(field(record, cols, "price")); err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		if item.Stock, err = parseStock(field(record, cols, "stock")); err != nil {
			return nil, fmt.Errorf("csv line %d: %w", line, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func mapColumns(header []string) map[string]int {
	cols := make(map[string]int, len(columnAliases))
	for idx, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		for canonical, aliases := range columnAliases {
			if _, taken := cols[canonical]; taken {
				continue
			}
			for _, alias := range aliases {
				if name == alias {
					cols[canonical] = idx
				}
			}
		}
	}
	return cols
}

func field(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func parsePrice(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	if !strings.Contains(v, ".") {
		v = strings.Replace(v, ",", ".", 1)
	}
	p, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", v, err)
	}
	if p < 0 {
		return 0, fmt.Errorf("negative price %q", v)
	}
	return p, nil
}

func parseStock(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid stock %q: %w", v, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative stock %q", v)
	}
	return n, nil
}
