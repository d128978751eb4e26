package source

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// documentXMLPath is the main document part inside a .docx archive.
const documentXMLPath = "word/document.xml"

// ExtractDocxText returns the paragraph text of a .docx document, paragraphs
// joined with a newline. Formatting, tables structure, headers/footers and
// embedded objects are ignored; only run text (w:t) and tabs survive.
func ExtractDocxText(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", eris.Wrap(err, "docx: open archive")
	}

	for _, f := range r.File {
		if f.Name != documentXMLPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", eris.Wrap(err, "docx: open document.xml")
		}
		defer rc.Close() //nolint:errcheck

		return parseDocumentXML(rc)
	}

	return "", eris.Errorf("docx: %s not found in archive", documentXMLPath)
}

// parseDocumentXML walks WordprocessingML tokens collecting w:p paragraphs.
func parseDocumentXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var paragraphs []string
	var current strings.Builder
	inParagraph := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "docx: parse document.xml")
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				inParagraph = true
				current.Reset()
			case "t":
				if inParagraph {
					var text string
					if err := dec.DecodeElement(&text, &el); err != nil {
						return "", eris.Wrap(err, "docx: decode text run")
					}
					current.WriteString(text)
				}
			case "tab":
				if inParagraph {
					current.WriteByte('\t')
				}
			}
		case xml.EndElement:
			if el.Name.Local == "p" && inParagraph {
				paragraphs = append(paragraphs, current.String())
				inParagraph = false
			}
		}
	}

	return strings.Join(paragraphs, "\n"), nil
}
