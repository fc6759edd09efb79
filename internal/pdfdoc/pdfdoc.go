// Package pdfdoc extracts plain text and metadata from uploaded PDF files.
package pdfdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

var (
	ErrEmptyFile  = errors.New("file is empty")
	ErrNotPDF     = errors.New("not a PDF file")
	ErrTooLarge   = errors.New("file exceeds size limit")
	ErrEncrypted  = errors.New("PDF is password protected")
	ErrInvalidPDF = errors.New("failed to parse PDF file; ensure the file is a valid PDF")
)

// DefaultMaxSize is the upload limit used when none is configured.
const DefaultMaxSize = 50 << 20

var magic = []byte("%PDF-")

type Metadata struct {
	Title    string    `json:"title,omitempty"`
	Author   string    `json:"author,omitempty"`
	Subject  string    `json:"subject,omitempty"`
	Keywords string    `json:"keywords,omitempty"`
	Created  time.Time `json:"created,omitempty"`
}

// Document is the extracted content of one PDF. Pages are separated by a blank line.
type Document struct {
	Name      string   `json:"name"`
	Text      string   `json:"text"`
	PageCount int      `json:"pageCount"`
	Metadata  Metadata `json:"metadata"`
}

// Extractor enforces the upload limit and extracts text.
type Extractor struct {
	MaxSize int64
}

// NewExtractor creates an extractor with a limit of maxSizeMB megabytes.
func NewExtractor(maxSizeMB int) *Extractor {
	size := int64(maxSizeMB) << 20
	if size <= 0 {
		size = DefaultMaxSize
	}
	return &Extractor{MaxSize: size}
}

// Extract reads the PDF in r. mime is the declared content type and may be empty;
// the file header decides in the end.
func (e *Extractor) Extract(r io.ReaderAt, size int64, name, mime string) (doc *Document, err error) {
	if size <= 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEmptyFile)
	}
	if e.MaxSize > 0 && size > e.MaxSize {
		return nil, fmt.Errorf("%s: %w (maximum %d MB)", name, ErrTooLarge, e.MaxSize>>20)
	}
	if !declaredPDF(name, mime) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotPDF)
	}

	head := make([]byte, len(magic))
	if _, err := r.ReadAt(head, 0); err != nil || !bytes.Equal(head, magic) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotPDF)
	}

	// The parser panics on some malformed inputs.
	defer func() {
		if p := recover(); p != nil {
			doc, err = nil, fmt.Errorf("%s: %w: %v", name, ErrInvalidPDF, p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) || strings.Contains(strings.ToLower(err.Error()), "encrypt") {
			return nil, fmt.Errorf("%s: %w", name, ErrEncrypted)
		}
		return nil, fmt.Errorf("%s: %w: %v", name, ErrInvalidPDF, err)
	}

	doc = &Document{Name: name, PageCount: reader.NumPage(), Metadata: metadata(reader)}

	var pages []string
	for i := 1; i <= doc.PageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Printf("  %s: page %d unreadable: %v", name, i, err)
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	doc.Text = strings.TrimSpace(strings.Join(pages, "\n\n"))
	return doc, nil
}

func declaredPDF(name, mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "" || mime == "application/octet-stream" {
		return mime == "" || strings.EqualFold(filepath.Ext(name), ".pdf")
	}
	return strings.HasPrefix(mime, "application/pdf") || strings.HasPrefix(mime, "application/x-pdf")
}

func metadata(r *pdf.Reader) Metadata {
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return Metadata{}
	}
	return Metadata{
		Title:    strings.TrimSpace(info.Key("Title").Text()),
		Author:   strings.TrimSpace(info.Key("Author").Text()),
		Subject:  strings.TrimSpace(info.Key("Subject").Text()),
		Keywords: strings.TrimSpace(info.Key("Keywords").Text()),
		Created:  parseDate(info.Key("CreationDate").Text()),
	}
}

var datePattern = regexp.MustCompile(`^D?:?(\d{4})(\d{2})?(\d{2})?(\d{2})?(\d{2})?(\d{2})?`)

// parseDate reads a PDF date string such as "D:20240131120000+05'30'". The
// timezone suffix is ignored and the result is UTC.
func parseDate(s string) time.Time {
	m := datePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}
	}
	parts := []string{m[1], "01", "01", "00", "00", "00"}
	for i := 2; i <= 6; i++ {
		if m[i] != "" {
			parts[i-1] = m[i]
		}
	}
	t, err := time.Parse("20060102150405", strings.Join(parts, ""))
	if err != nil {
		return time.Time{}
	}
	return t
}

// File is one upload in a batch.
type File struct {
	Name   string
	MIME   string
	Size   int64
	Reader io.ReaderAt
}

// Result is the outcome for one file. Exactly one of Document and Err is set.
type Result struct {
	Name      string
	Document  *Document
	Structure Structure
	Err       error
}

// ProcessBatch extracts every file in order. A failing file is reported in its
// Result and does not affect the others. Files not yet started when ctx is
// cancelled get ctx.Err().
func (e *Extractor) ProcessBatch(ctx context.Context, files []File) []Result {
	results := make([]Result, len(files))
	for i, f := range files {
		results[i].Name = f.Name
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}

		doc, err := e.Extract(f.Reader, f.Size, f.Name, f.MIME)
		if err != nil {
			log.Printf("PDF %s failed: %v", f.Name, err)
			results[i].Err = err
			continue
		}
		results[i].Document = doc
		results[i].Structure = Inspect(doc.Text)
		log.Printf("PDF %s: %d pages, %d words", f.Name, doc.PageCount, results[i].Structure.WordCount)
	}
	return results
}
