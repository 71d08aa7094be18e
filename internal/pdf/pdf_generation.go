package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Generator renders printable letters for postal delivery.
type Generator interface {
	GenerateLetter(data LetterData) (string, error)
}

// LetterGenerator writes letters under RootDir/letters. With no FontPath the
// core Helvetica font is used and text is mapped to cp1252.
type LetterGenerator struct {
	RootDir  string
	FontPath string
	fontName string
}

type LetterData struct {
	RequestID       int64
	CommunicationID int64
	ReturnName      string
	ReturnAddress   string
	AgencyName      string
	AgencyAddress   string
	Subject         string
	Body            string
	Date            time.Time
	Filename        string // bare file name; generated when empty
}

func NewLetterGenerator(rootDir, fontPath string) *LetterGenerator {
	g := &LetterGenerator{
		RootDir:  filepath.Clean(rootDir),
		FontPath: fontPath,
		fontName: "Helvetica",
	}
	if fontPath != "" {
		g.fontName = "DejaVu"
	}
	return g
}

// GenerateLetter returns the letter's path relative to RootDir.
func (g *LetterGenerator) GenerateLetter(data LetterData) (string, error) {
	filename := data.Filename
	if filename == "" {
		filename = fmt.Sprintf("request_%d_comm_%d.pdf", data.RequestID, data.CommunicationID)
	}
	absPath, rel, err := g.ensureTarget(filename)
	if err != nil {
		return "", err
	}
	if data.Date.IsZero() {
		data.Date = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetTitle(data.Subject, true)
	pdf.SetAuthor(data.ReturnName, true)
	pdf.SetMargins(25, 25, 25)
	pdf.SetAutoPageBreak(true, 25)
	tr := g.setupFont(pdf)
	pdf.AddPage()

	// return address, top left
	pdf.SetFont(g.fontName, "", 10)
	g.block(pdf, tr, data.ReturnName, data.ReturnAddress)
	pdf.Ln(8)

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, tr(data.Date.Format("January 2, 2006")), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	g.block(pdf, tr, data.AgencyName, data.AgencyAddress)
	pdf.Ln(8)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.MultiCell(0, 6, tr(data.Subject), "", "L", false)
	g.hr(pdf)

	pdf.SetFont(g.fontName, "", 11)
	for _, para := range strings.Split(strings.ReplaceAll(data.Body, "\r\n", "\n"), "\n\n") {
		pdf.MultiCell(0, 6, tr(strings.TrimSpace(para)), "", "L", false)
		pdf.Ln(3)
	}

	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(g.fontName, "", 9)
		pdf.CellFormat(0, 10,
			fmt.Sprintf("Request #%d  -  page %d/{nb}", data.RequestID, pdf.PageNo()),
			"", 0, "C", false, 0, "",
		)
	})

	if err := pdf.OutputFileAndClose(absPath); err != nil {
		return "", err
	}
	return rel, nil
}

func (g *LetterGenerator) block(pdf *gofpdf.Fpdf, tr func(string) string, name, address string) {
	if name != "" {
		pdf.CellFormat(0, 5, tr(name), "", 1, "L", false, 0, "")
	}
	for _, line := range strings.Split(address, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}
}

func (g *LetterGenerator) hr(pdf *gofpdf.Fpdf) {
	y := pdf.GetY() + 1.5
	left, _, right, _ := pdf.GetMargins()
	w, _ := pdf.GetPageSize()
	pdf.SetLineWidth(0.2)
	pdf.Line(left, y, w-right, y)
	pdf.SetY(y + 3)
}

func (g *LetterGenerator) ensureTarget(filename string) (abs, rel string, err error) {
	dir := filepath.Join(g.RootDir, "letters")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create letters dir: %w", err)
	}
	filename = filepath.Base(filename)
	return filepath.Join(dir, filename), filepath.ToSlash(filepath.Join("letters", filename)), nil
}

// setupFont registers the TTF when configured and returns the text translator.
func (g *LetterGenerator) setupFont(pdf *gofpdf.Fpdf) func(string) string {
	if g.FontPath != "" {
		pdf.AddUTF8Font(g.fontName, "", g.FontPath)
		pdf.AddUTF8Font(g.fontName, "B", g.FontPath)
		return func(s string) string { return s }
	}
	return pdf.UnicodeTranslatorFromDescriptor("")
}
