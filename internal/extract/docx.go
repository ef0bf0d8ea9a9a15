package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const docxBody = "word/document.xml"

// maxDocxBody caps the inflated size of document.xml. Zip headers understate
// sizes freely, so the cap is enforced on the stream.
var maxDocxBody int64 = 32 << 20

// docxText returns paragraph text joined by newlines.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		if f.UncompressedSize64 > uint64(maxDocxBody) {
			return "", fmt.Errorf("%s: %w", docxBody, ErrDocumentTooLarge)
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxBody, err)
		}
		defer func() { _ = rc.Close() }()

		body := &io.LimitedReader{R: rc, N: maxDocxBody + 1}
		text, err := paragraphs(body)
		if body.N <= 0 {
			return "", fmt.Errorf("%s: %w", docxBody, ErrDocumentTooLarge)
		}
		return text, err
	}
	return "", fmt.Errorf("docx has no %s", docxBody)
}

func paragraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		out    []string
		cur    strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				cur.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(cur.String()); s != "" {
					out = append(out, s)
				}
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	return strings.Join(out, "\n"), nil
}
