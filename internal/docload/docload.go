// Package docload extracts plain text from lease documents on disk.
// Supported formats are plain text (.txt, .md), PDF and DOCX.
package docload

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNoText          = errors.New("no text could be extracted from document")
	ErrTooLarge        = errors.New("document exceeds size limit")
)

// DefaultMaxBytes bounds the size of a document Loader will read.
const DefaultMaxBytes = 32 << 20

// Loader reads documents and returns their text.
type Loader struct {
	maxBytes int64
	logger   *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxBytes sets the largest file Loader accepts.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) { l.maxBytes = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{maxBytes: DefaultMaxBytes, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SupportedExtensions lists the file extensions ExtractText understands.
func SupportedExtensions() []string {
	return []string{".txt", ".md", ".pdf", ".docx"}
}

// ExtractText returns the text of the document at path, chosen by extension.
func (l *Loader) ExtractText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	if l.maxBytes > 0 && info.Size() > l.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size())
	}

	ext := strings.ToLower(filepath.Ext(path))
	var text string
	switch ext {
	case ".txt", ".md":
		text, err = readPlain(path)
	case ".pdf":
		text, err = readPDF(ctx, path)
	case ".docx":
		text, err = readDOCX(path)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}

	l.logger.Debug("document text extracted", "path", path, "format", strings.TrimPrefix(ext, "."), "characters", utf8.RuneCountInString(text))
	return text, nil
}

func readPlain(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("read document: %s is not valid UTF-8", filepath.Base(path))
	}
	return string(b), nil
}

// readPDF joins the plain text of every page with blank lines.
func readPDF(ctx context.Context, path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("parse pdf page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n\n"), nil
}

// documentXML is the part of word/document.xml that carries text.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func readDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("parse docx: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("parse docx: %w", err)
		}
		return parseDocumentXML(content)
	}
	return "", fmt.Errorf("parse docx: word/document.xml not found")
}

// parseDocumentXML returns one line per paragraph.
func parseDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("parse docx: %w", err)
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, r := range para.Runs {
			for _, t := range r.Text {
				b.WriteString(t.Content)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
