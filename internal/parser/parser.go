package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Parser extracts plain text from a local file.
type Parser interface {
	ExtractFile(filePath string) (string, error)
}

// FileParser dispatches on the file extension.
type FileParser struct{}

func New() *FileParser { return &FileParser{} }

// ExtractFile returns the ASCII text of the file at filePath.
func (FileParser) ExtractFile(filePath string) (string, error) {
	text, err := extract(filePath)
	if err != nil {
		return "", err
	}
	return ToASCII(text), nil
}

// Supported reports whether ExtractFile knows the extension of filePath.
func Supported(filePath string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(filePath))]
	return ok
}

var extractors = map[string]func(string) (string, error){
	".txt":      parseText,
	".text":     parseText,
	".csv":      parseText,
	".json":     parseText,
	".log":      parseText,
	".md":       parseMarkdown,
	".markdown": parseMarkdown,
	".html":     parseHTML,
	".htm":      parseHTML,
	".pdf":      parsePDF,
	".docx":     parseDOCX,
	".pptx":     parsePPTX,
	".xlsx":     parseXLSX,
	".xlsm":     parseWorkbook,
	".xltx":     parseWorkbook,
	".xltm":     parseWorkbook,
}

func extract(filePath string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	fn, ok := extractors[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	text, err := fn(filePath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filepath.Base(filePath), err)
	}
	return text, nil
}

func parsePDF(filePath string) (string, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}
	return text.String(), nil
}

var paragraphEnd = regexp.MustCompile(`</w:p>`)

func parseDOCX(filePath string) (string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	// GetContent returns the raw document.xml body.
	content := r.Editable().GetContent()
	content = paragraphEnd.ReplaceAllString(content, "\n</w:p>")
	return StripMarkup(content)
}

var slideNumber = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func parsePPTX(filePath string) (string, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, file := range f.File {
		m := slideNumber.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, text: extractTextFromXML(string(data))})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var text strings.Builder
	for _, s := range slides {
		if strings.TrimSpace(s.text) == "" {
			continue
		}
		text.WriteString(strings.TrimSpace(s.text))
		text.WriteString("\n")
	}
	return text.String(), nil
}

func parseXLSX(filePath string) (string, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			text.WriteString(strings.Join(cells, "\t"))
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

// parseWorkbook handles the macro-enabled and template spreadsheet variants.
func parseWorkbook(filePath string) (string, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var text strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return "", fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
	}
	return text.String(), nil
}

func parseText(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parseHTML(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return StripMarkup(string(data))
}

func parseMarkdown(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", err
	}
	return MarkdownToText(data)
}

// MarkdownToText renders markdown to HTML and keeps the visible text.
func MarkdownToText(source []byte) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
		),
	)
	var buf bytes.Buffer
	if err := md.Convert(source, &buf); err != nil {
		return "", err
	}
	return StripMarkup(buf.String())
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}
