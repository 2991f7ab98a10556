package pdf

import (
	"bytes"
	"context"
	"errors"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"

	"quiz-report/internal/domain"
)

// US Letter in points, laid out from the top-left corner.
const (
	pageWidth   = 612.0
	marginLeft  = 50.0
	marginRight = 50.0
	lineLeading = 16.0
	imageTop    = 100.0
)

// FPDFRenderer draws the report with go-pdf/fpdf. Content streams are left
// uncompressed so the text operators stay greppable in the output.
//
// Text uses the core Helvetica font and is limited to cp1252. Runes outside
// it print as '.', and each render that loses some logs a warning.
type FPDFRenderer struct {
	logger *zap.Logger
}

func NewFPDFRenderer(logger *zap.Logger) *FPDFRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FPDFRenderer{logger: logger}
}

func (r *FPDFRenderer) Render(ctx context.Context, f domain.ReportFields, imagePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RenderError{Op: "start", Err: err}
	}

	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetCompression(false)
	doc.SetMargins(marginLeft, 50, marginRight)
	doc.SetAutoPageBreak(true, 50)
	doc.SetTitle("Quiz Report — "+f.UserName, true)
	doc.SetCreator("quiz-report", true)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	if lost := unencodable(tr, f.UserName, f.Score, f.Archetype, f.Description); len(lost) > 0 {
		r.logger.Warn("Characters outside cp1252 replaced",
			zap.String("user_name", f.UserName), zap.String("runes", string(lost)))
	}

	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.Text(marginLeft, 80, tr("Quiz Report — "+f.UserName))

	doc.SetFont("Helvetica", "", 14)
	doc.Text(marginLeft, 120, tr("Score: "+f.Score))
	doc.Text(marginLeft, 140, "Date: "+f.GeneratedAt.UTC().Format("2006-01-02 15:04:05")+" UTC")

	doc.SetFont("Helvetica", "B", 16)
	doc.Text(marginLeft, 180, tr("Archetype: "+f.Archetype))

	if f.Description != "" {
		doc.SetFont("Helvetica", "", 12)
		// MultiCell positions by the top of the line box; this puts the
		// first baseline at 210pt.
		doc.SetXY(marginLeft, 210-lineLeading/2-12*0.3)
		doc.MultiCell(pageWidth-marginLeft-marginRight, lineLeading, tr(f.Description), "", "L", false)
	}

	if imagePath != "" {
		if err := r.drawImage(doc, imagePath); err != nil {
			r.logger.Warn("Could not draw image", zap.String("path", imagePath), zap.Error(err))
		}
	}

	if doc.Err() {
		return nil, &RenderError{Op: "layout", Err: doc.Error()}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, &RenderError{Op: "output", Err: err}
	}
	if buf.Len() == 0 {
		return nil, &RenderError{Op: "output", Err: errors.New("empty document")}
	}
	return buf.Bytes(), nil
}

// drawImage places the image in the top-right corner. The image is first
// registered on a scratch document so a parse failure cannot poison doc.
func (r *FPDFRenderer) drawImage(doc *fpdf.Fpdf, path string) error {
	img, err := loadImage(path)
	if err != nil {
		return err
	}

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	probe := fpdf.New("P", "pt", "Letter", "")
	probe.RegisterImageOptionsReader("probe", opts, bytes.NewReader(img.PNG))
	if probe.Err() {
		return &ImageDrawError{Path: path, Err: probe.Error()}
	}

	doc.RegisterImageOptionsReader("archetype", opts, bytes.NewReader(img.PNG))
	w, h := img.fit()
	doc.ImageOptions("archetype", pageWidth-w-marginRight, imageTop, w, h, false, opts, 0, "")
	return nil
}

// unencodable returns the distinct runes of texts that tr cannot represent.
func unencodable(tr func(string) string, texts ...string) []rune {
	var lost []rune
	seen := map[rune]bool{}
	for _, t := range texts {
		for _, c := range t {
			if c < utf8.RuneSelf || seen[c] {
				continue
			}
			if tr(string(c)) == "." {
				seen[c] = true
				lost = append(lost, c)
			}
		}
	}
	return lost
}
