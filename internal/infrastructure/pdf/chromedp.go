package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"math"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"quiz-report/internal/domain"
)

const defaultChromeTimeout = 30 * time.Second

// ChromedpConfig contains configuration for the chromedp renderer
type ChromedpConfig struct {
	// RemoteURL is the devtools websocket of a running Chrome; empty launches one.
	RemoteURL string
	Timeout   time.Duration
	// NoSandbox is required when Chrome runs as root inside a container.
	NoSandbox bool
	Logger    *zap.Logger
}

// ChromedpRenderer prints the report page through headless Chrome.
type ChromedpRenderer struct {
	config      ChromedpConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewChromedpRenderer(cfg ChromedpConfig) *ChromedpRenderer {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultChromeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ChromedpRenderer{config: cfg, logger: logger}

	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

func (r *ChromedpRenderer) Render(ctx context.Context, f domain.ReportFields, imagePath string) ([]byte, error) {
	var img *preparedImage
	if imagePath != "" {
		var err error
		if img, err = loadImage(imagePath); err != nil {
			r.logger.Warn("Could not draw image", zap.String("path", imagePath), zap.Error(err))
			img = nil
		}
	}

	html, err := buildReportHTML(f, img)
	if err != nil {
		return nil, &RenderError{Op: "template", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()
	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()
	// Tie the browser tab to the caller's deadline.
	go func() {
		<-ctx.Done()
		browserCancel()
	}()

	var out []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.5).
				WithPaperHeight(11).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			if err != nil {
				return err
			}
			out = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &RenderError{Op: "print", Err: fmt.Errorf("timed out after %v: %w", r.config.Timeout, err)}
		}
		return nil, &RenderError{Op: "print", Err: err}
	}
	if len(out) == 0 {
		return nil, &RenderError{Op: "print", Err: errors.New("empty document")}
	}
	return out, nil
}

// Close shuts down the browser allocator.
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>Quiz Report — {{.UserName}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 0; padding: 50pt; width: 512pt; position: relative; }
h1 { font-size: 20pt; margin: 20pt 0 24pt; }
.meta { font-size: 14pt; margin: 0 0 6pt; }
h2 { font-size: 16pt; margin: 24pt 0 12pt; }
.desc { font-size: 12pt; line-height: 16pt; white-space: pre-wrap; }
.archetype-image { position: absolute; top: 100pt; right: 50pt; }
</style></head>
<body>
<h1>Quiz Report — {{.UserName}}</h1>
<p class="meta">Score: {{.Score}}</p>
<p class="meta">Date: {{.Date}}</p>
<h2>Archetype: {{.Archetype}}</h2>
{{if .Description}}<div class="desc">{{.Description}}</div>{{end}}
{{if .ImageSrc}}<img class="archetype-image" src="{{.ImageSrc}}" width="{{.ImageWidth}}" height="{{.ImageHeight}}" alt="">{{end}}
</body></html>`))

type reportView struct {
	UserName    string
	Score       string
	Date        string
	Archetype   string
	Description string
	ImageSrc    template.URL
	ImageWidth  int
	ImageHeight int
}

func buildReportHTML(f domain.ReportFields, img *preparedImage) (string, error) {
	v := reportView{
		UserName:    f.UserName,
		Score:       f.Score,
		Date:        f.GeneratedAt.UTC().Format("2006-01-02 15:04:05") + " UTC",
		Archetype:   f.Archetype,
		Description: f.Description,
	}
	if img != nil {
		w, h := img.fit()
		v.ImageSrc = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(img.PNG))
		// CSS pixels are 3/4 of a point.
		v.ImageWidth = int(math.Round(w * 96 / 72))
		v.ImageHeight = int(math.Round(h * 96 / 72))
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}
