package report

import (
	"context"
	_ "embed"
	"encoding/base64"
	"fmt"
	"html"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed style.css
var styleCSS string

const defaultRenderTimeout = 30 * time.Second

var (
	naHeading  = regexp.MustCompile(`<h2([^>]*)>([^<]*)</h2>\s*<p><em>`)
	formulaTag = regexp.MustCompile(`<td>(N/A[^<]*)</td>`)
)

// RenderHTML converts card markdown into a standalone printable page.
func RenderHTML(markdown, title string) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}
	var doc strings.Builder
	fmt.Fprintf(&doc, "<!doctype html><html><head><meta charset='utf-8'><title>%s</title>", html.EscapeString(title))
	fmt.Fprintf(&doc, "<style>%s</style></head>", styleCSS)
	fmt.Fprintf(&doc, "<body><div class='card'>%s</div></body></html>", applyPrintLayoutHooks(content.String()))
	return doc.String(), nil
}

// applyPrintLayoutHooks dims not-applicable scenarios and N/A cells.
func applyPrintLayoutHooks(contentHTML string) string {
	out := naHeading.ReplaceAllString(contentHTML, `<h2$1 data-na="true">$2</h2><p><em>`)
	return formulaTag.ReplaceAllString(out, `<td class="na">$1</td>`)
}

// Paper is a page size and uniform margin in inches.
type Paper struct {
	Width, Height, Margin float64
}

// A5 fits one card per sheet and folds into a client file.
var A5 = Paper{Width: 5.83, Height: 8.27, Margin: 0.4}

// ChromiumPDFRenderer prints cards with a headless Chromium.
type ChromiumPDFRenderer struct {
	chromePath string
	timeout    time.Duration
	paper      Paper
}

func NewChromiumPDFRenderer(chromePath string, timeout time.Duration) *ChromiumPDFRenderer {
	if chromePath == "" {
		chromePath = detectChromePath()
	}
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}
	return &ChromiumPDFRenderer{chromePath: chromePath, timeout: timeout, paper: A5}
}

func (r *ChromiumPDFRenderer) Render(ctx context.Context, c Card) ([]byte, error) {
	doc, err := RenderHTML(Markdown(c), "Formula Card - "+c.Brand)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, r.allocatorOptions()...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var pdf []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString([]byte(doc))),
		chromedp.WaitVisible("div.card", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var printErr error
			pdf, _, printErr = r.printParams().Do(ctx)
			return printErr
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print formula card for %s: %w", c.Brand, err)
	}
	return pdf, nil
}

func (r *ChromiumPDFRenderer) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	return opts
}

func (r *ChromiumPDFRenderer) printParams() *page.PrintToPDFParams {
	p := r.paper
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithPreferCSSPageSize(false).
		WithPaperWidth(p.Width).
		WithPaperHeight(p.Height).
		WithMarginTop(p.Margin).
		WithMarginBottom(p.Margin).
		WithMarginLeft(p.Margin).
		WithMarginRight(p.Margin)
}

// detectChromePath returns the first Chromium build found on PATH.
func detectChromePath() string {
	for _, name := range []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}
