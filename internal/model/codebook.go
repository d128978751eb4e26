package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ThemeBlock is one thematic category in the model's coding reply. Codings
// and verbatims are intended to be parallel but the model does not guarantee
// equal length.
type ThemeBlock struct {
	Theme     string   `json:"theme"`
	Codings   []string `json:"codages"`
	Verbatims []string `json:"verbatims"`
}

// CodingPayload is the JSON structure recovered from an analysis reply.
type CodingPayload struct {
	Themes []ThemeBlock `json:"themes"`
}

// Row is one codebook record.
type Row struct {
	Theme    string
	Coding   string
	Verbatim string
}

// Table is the ordered row set for one document. May be empty.
type Table []Row

// maxSheetIDLen is the xlsx sheet name limit.
const maxSheetIDLen = 31

// sheetIDIllegal are the characters xlsx forbids in sheet names.
const sheetIDIllegal = `[]:*?/\`

// SheetID derives a spreadsheet-safe sheet identifier from a display name:
// NFC-normalized, illegal characters stripped, truncated to 31 runes.
func SheetID(name string) string {
	name = norm.NFC.String(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if strings.ContainsRune(sheetIDIllegal, r) {
			continue
		}
		b.WriteRune(r)
	}

	id := strings.TrimSpace(b.String())
	if id == "" {
		return "Sheet"
	}

	runes := []rune(id)
	if len(runes) > maxSheetIDLen {
		id = strings.TrimSpace(string(runes[:maxSheetIDLen]))
	}
	return id
}

// Codebook maps sheet identifiers to document tables. Insertion order is
// preserved for deterministic workbook output; storing under an existing
// identifier replaces the table in place (last write wins).
type Codebook struct {
	order  []string
	tables map[string]Table
}

// NewCodebook creates an empty Codebook.
func NewCodebook() *Codebook {
	return &Codebook{tables: make(map[string]Table)}
}

// Put stores a table under the given sheet identifier. Returns true when an
// existing entry was replaced.
func (c *Codebook) Put(sheetID string, t Table) bool {
	_, replaced := c.tables[sheetID]
	if !replaced {
		c.order = append(c.order, sheetID)
	}
	c.tables[sheetID] = t
	return replaced
}

// Get returns the table stored under the identifier.
func (c *Codebook) Get(sheetID string) (Table, bool) {
	t, ok := c.tables[sheetID]
	return t, ok
}

// SheetIDs returns identifiers in first-insertion order.
func (c *Codebook) SheetIDs() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Len returns the number of sheets.
func (c *Codebook) Len() int {
	return len(c.order)
}
