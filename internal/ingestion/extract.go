package ingestion

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/wolfman30/agentx-dm-platform/internal/llm"
	"github.com/wolfman30/agentx-dm-platform/pkg/logging"
)

const (
	// MinContentChars is the shortest extraction accepted from any strategy.
	MinContentChars = 50

	minReadableRatio = 0.35
	minReadableChars = 100
)

var (
	// ErrNoContent is returned when no usable text could be extracted.
	ErrNoContent = errors.New("ingestion: no content could be extracted")

	errNotApplicable = errors.New("ingestion: extractor not applicable")
)

// Document is a fetched file awaiting text extraction.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Ext returns the lowercased file extension including the dot.
func (d Document) Ext() string {
	return strings.ToLower(path.Ext(d.Filename))
}

// MIMEType guesses the document's media type.
func (d Document) MIMEType() string {
	if ct := mime.TypeByExtension(d.Ext()); ct != "" {
		return ct
	}
	if d.ContentType != "" {
		return d.ContentType
	}
	return "application/octet-stream"
}

// Extractor turns a document into text. It returns errNotApplicable to pass
// the document to the next extractor in a Chain.
type Extractor interface {
	Extract(ctx context.Context, doc Document) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, doc Document) (string, error)

func (f ExtractorFunc) Extract(ctx context.Context, doc Document) (string, error) {
	return f(ctx, doc)
}

// Chain tries extractors in order until one claims the document.
type Chain struct {
	extractors []Extractor
	logger     *logging.Logger
}

func NewChain(logger *logging.Logger, extractors ...Extractor) *Chain {
	if logger == nil {
		logger = logging.Default()
	}
	return &Chain{extractors: extractors, logger: logger}
}

// NewDefaultChain builds the standard chain: plain text, PDF, Word,
// spreadsheets, readable bytes, then AI transcription for anything left.
func NewDefaultChain(transcriber llm.DocumentTranscriber, logger *logging.Logger) *Chain {
	return NewChain(logger,
		ExtractorFunc(extractPlainText),
		PDFExtractor{Transcriber: transcriber},
		ExtractorFunc(extractDocx),
		ExtractorFunc(extractXlsx),
		ExtractorFunc(extractReadableBytes),
		AIFallbackExtractor{Transcriber: transcriber},
	)
}

// Extract returns the text of the first strategy that yields at least
// MinContentChars. A failing or short strategy passes the document on;
// ErrNoContent is returned once every applicable strategy is exhausted.
func (c *Chain) Extract(ctx context.Context, doc Document) (string, error) {
	reason := "no extractor applies"
	for _, extractor := range c.extractors {
		text, err := extractor.Extract(ctx, doc)
		switch {
		case errors.Is(err, errNotApplicable):
			continue
		case errors.Is(err, ErrNoContent):
			return "", err
		case err != nil:
			reason = err.Error()
			c.logger.Warn("text extraction failed, trying next strategy", "filename", doc.Filename, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if n := len([]rune(text)); n < MinContentChars {
			reason = fmt.Sprintf("yielded %d characters", n)
			c.logger.Warn("text extraction too short, trying next strategy", "filename", doc.Filename, "chars", n)
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("%w: %s: %s", ErrNoContent, doc.Filename, reason)
}

// extractPlainText is final for text formats: a short file is not retried.
func extractPlainText(_ context.Context, doc Document) (string, error) {
	switch doc.Ext() {
	case ".txt", ".md", ".markdown", ".csv":
		text := string(bytes.ToValidUTF8(doc.Data, nil))
		if n := len([]rune(strings.TrimSpace(text))); n < MinContentChars {
			return "", fmt.Errorf("%w: %s has %d characters", ErrNoContent, doc.Filename, n)
		}
		return text, nil
	}
	return "", errNotApplicable
}

// PDFExtractor transcribes PDFs with a document-capable model.
type PDFExtractor struct {
	Transcriber llm.DocumentTranscriber
}

func (p PDFExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	if doc.Ext() != ".pdf" {
		return "", errNotApplicable
	}
	if p.Transcriber == nil {
		return "", errors.New("pdf transcription is not configured")
	}
	return p.Transcriber.TranscribeDocument(ctx, "application/pdf", doc.Data)
}

// AIFallbackExtractor transcribes any document no other extractor handled.
// PDFs are skipped since PDFExtractor already transcribed them.
type AIFallbackExtractor struct {
	Transcriber llm.DocumentTranscriber
}

func (a AIFallbackExtractor) Extract(ctx context.Context, doc Document) (string, error) {
	if doc.Ext() == ".pdf" {
		return "", errNotApplicable
	}
	if a.Transcriber == nil {
		return "", errors.New("document is not readable and ai transcription is not configured")
	}
	return a.Transcriber.TranscribeDocument(ctx, doc.MIMEType(), doc.Data)
}

func extractReadableBytes(_ context.Context, doc Document) (string, error) {
	switch doc.Ext() {
	case ".pdf", ".docx", ".xlsx":
		return "", errNotApplicable
	}
	text, ratio := PrintableText(doc.Data)
	if ratio >= minReadableRatio && len(text) >= minReadableChars {
		return text, nil
	}
	return "", errNotApplicable
}

func extractDocx(_ context.Context, doc Document) (string, error) {
	if doc.Ext() != ".docx" {
		return "", errNotApplicable
	}
	zr, err := zip.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()
		return wordprocessingText(rc)
	}
	return "", errors.New("docx has no word/document.xml")
}

// wordprocessingText collects w:t runs, one line per w:p paragraph.
func wordprocessingText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}
	return b.String(), nil
}

func extractXlsx(_ context.Context, doc Document) (string, error) {
	if doc.Ext() != ".xlsx" {
		return "", errNotApplicable
	}
	f, err := excelize.OpenReader(bytes.NewReader(doc.Data))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Sheet: %s\n", sheet)
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if cell = strings.TrimSpace(cell); cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) > 0 {
				b.WriteString(strings.Join(cells, " | "))
				b.WriteByte('\n')
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
