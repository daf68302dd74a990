package extractor

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var _ port.TextExtractor = (*Docx)(nil)

const documentPart = "word/document.xml"

// Docx extracts the body paragraphs of a Word document.
type Docx struct{}

func NewDocx() *Docx {
	return &Docx{}
}

func (d *Docx) Extensions() []string {
	return []string{".docx"}
}

// ExtractText returns the non-empty body paragraphs of the document in
// order, one per line. Paragraphs inside tables are not included.
func (d *Docx) ExtractText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", &domain.ExtractionError{Path: path, Err: err}
	}
	defer reader.Close()

	for _, file := range reader.File {
		if file.Name != documentPart {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", &domain.ExtractionError{Path: path, Err: err}
		}
		defer rc.Close()

		paragraphs, err := parseParagraphs(rc)
		if err != nil {
			return "", &domain.ExtractionError{Path: path, Err: err}
		}
		return joinParagraphs(paragraphs), nil
	}

	return "", &domain.ExtractionError{Path: path, Err: fmt.Errorf("missing %s", documentPart)}
}

// parseParagraphs walks document.xml and returns the text of every
// paragraph that is a direct child of the body. Only the paragraph's own
// runs count: text boxes and alternate content anchored inside it are
// skipped.
func parseParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		stack      []string
		current    strings.Builder
		skipDepth  int
	)

	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			inRun := paragraphRun(stack)
			stack = append(stack, name)

			if skipDepth > 0 || skippedSubtree[name] {
				skipDepth++
				continue
			}

			switch {
			case name == "p" && len(stack) >= 2 && stack[len(stack)-2] == "body":
				current.Reset()
			case inRun && name == "tab":
				current.WriteByte('\t')
			case inRun && name == "br":
				current.WriteString(breakText(t))
			case inRun && name == "cr":
				current.WriteByte('\n')
			}

		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if skipDepth > 0 {
				skipDepth--
				continue
			}
			if name == "p" && len(stack) > 0 && stack[len(stack)-1] == "body" {
				paragraphs = append(paragraphs, current.String())
			}

		case xml.CharData:
			if skipDepth == 0 && len(stack) > 0 && stack[len(stack)-1] == "t" && paragraphRun(stack[:len(stack)-1]) {
				current.Write(t)
			}
		}
	}

	return paragraphs, nil
}

// skippedSubtree names elements whose content never belongs to the
// enclosing paragraph's text. Word writes each text box twice, once under
// mc:Choice and once under mc:Fallback.
var skippedSubtree = map[string]bool{
	"AlternateContent": true,
	"txbxContent":      true,
}

// paragraphRun reports whether stack ends in a run that belongs to a body
// paragraph, either directly or through a hyperlink.
func paragraphRun(stack []string) bool {
	n := len(stack)
	switch {
	case n >= 3 && stack[n-1] == "r" && stack[n-2] == "p" && stack[n-3] == "body":
		return true
	case n >= 4 && stack[n-1] == "r" && stack[n-2] == "hyperlink" && stack[n-3] == "p" && stack[n-4] == "body":
		return true
	}
	return false
}

// breakText maps a w:br element to text. Page and column breaks carry no
// text; line breaks become a newline.
func breakText(el xml.StartElement) string {
	for _, attr := range el.Attr {
		if attr.Name.Local == "type" && (attr.Value == "page" || attr.Value == "column") {
			return ""
		}
	}
	return "\n"
}

func joinParagraphs(paragraphs []string) string {
	kept := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
