package pdf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGenerateLetter(t *testing.T) {
	root := t.TempDir()
	g := NewLetterGenerator(root, "")

	rel, err := g.GenerateLetter(LetterData{
		RequestID:       12,
		CommunicationID: 40,
		ReturnName:      "Records Desk",
		ReturnAddress:   "PO Box 1\nBoston, MA 02101",
		AgencyName:      "Springfield Police Department",
		AgencyAddress:   "1 Main St\nSpringfield",
		Subject:         "RE: Public records request #12",
		Body:            "To whom it may concern,\n\nPlease provide the records.\n\nThank you.",
		Date:            time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("GenerateLetter: %v", err)
	}
	if rel != "letters/request_12_comm_40.pdf" {
		t.Fatalf("rel path = %q", rel)
	}
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("reading letter: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF")) {
		t.Fatalf("not a pdf: %q", b[:8])
	}
}

func TestGenerateLetterStripsDirectories(t *testing.T) {
	root := t.TempDir()
	g := NewLetterGenerator(root, "")
	rel, err := g.GenerateLetter(LetterData{RequestID: 1, Filename: "../../escape.pdf", Subject: "x", Body: "y"})
	if err != nil {
		t.Fatal(err)
	}
	if rel != "letters/escape.pdf" {
		t.Fatalf("rel = %q", rel)
	}
}
