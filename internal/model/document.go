package model

import "strings"

// Document is one source document, fully materialized before analysis.
type Document struct {
	// Name is the display name from the document source (usually the file
	// name). Sheet identifiers are derived from it, see SheetID.
	Name string

	// Text is the full extracted paragraph text of the document.
	Text string
}

// Empty reports whether the document has no analyzable content.
func (d Document) Empty() bool {
	return strings.TrimSpace(d.Text) == ""
}
