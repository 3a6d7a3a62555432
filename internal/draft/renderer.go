// Package draft renders a case's final opinion as a Karta Wypadku PDF draft
// through headless Chromium.
package draft

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/pkruk/accident-clerk/internal/domain"
)

// Meta labels the document header.
type Meta struct {
	CaseID      string
	GeneratedAt time.Time
	Standpoint  string
}

type ChromiumRenderer struct {
	chromePath string
}

func NewChromiumRenderer() *ChromiumRenderer {
	return &ChromiumRenderer{chromePath: detectChromePath()}
}

// Render prints the opinion draft to PDF bytes.
func (r *ChromiumRenderer) Render(ctx context.Context, markdown string, meta Meta) ([]byte, error) {
	htmlDoc, err := buildHTML(markdown, meta)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			footer := `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
				`Strona <span class="pageNumber"></span> z <span class="totalPages"></span></div>`
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(footer).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				WithMarginLeft(0.45).
				WithMarginRight(0.45).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return pdf, nil
}

// BuildMarkdown turns the persisted opinion into the draft document body.
func BuildMarkdown(c domain.Case, op domain.Opinion) string {
	var b strings.Builder
	b.WriteString("# Karta Wypadku — projekt\n\n")
	if op.Summary != "" {
		b.WriteString("## Streszczenie\n\n" + op.Summary + "\n\n")
	}
	if op.DetailedAnalysis != "" {
		b.WriteString("## Analiza\n\n")
		// The narrative's "=== SEKCJA ===" banners become subheadings.
		for _, line := range strings.Split(op.DetailedAnalysis, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "=== ") && strings.HasSuffix(trimmed, " ===") {
				b.WriteString("### " + strings.TrimSuffix(strings.TrimPrefix(trimmed, "=== "), " ===") + "\n")
				continue
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}
	if c.NIP != "" || c.REGON != "" || c.PKDCode != "" {
		b.WriteString("## Dane pracodawcy\n\n")
		if c.NIP != "" {
			b.WriteString("- NIP: " + c.NIP + "\n")
		}
		if c.REGON != "" {
			b.WriteString("- REGON: " + c.REGON + "\n")
		}
		if c.PKDCode != "" {
			b.WriteString("- Kod PKD: " + c.PKDCode + "\n")
		}
	}
	return b.String()
}

const styleCSS = `
body{font-family:'Georgia',serif;color:#1c1917;line-height:1.5;font-size:0.95rem;}
h1{font-size:1.5rem;border-bottom:2px solid #1c1917;padding-bottom:0.3rem;}
h2{font-size:1.15rem;margin-top:1.4rem;}
h3{font-size:1rem;margin-top:1.1rem;}
.draft-meta{color:#44403c;font-size:0.8rem;margin-bottom:1rem;}
.draft-meta strong{color:#1c1917;}
.draft-badge{display:inline-block;background:#fef3c7;color:#78350f;border:1px solid #fcd34d;border-radius:3px;padding:0.1rem 0.5rem;font-size:0.8rem;}
ul{padding-left:1.2rem;}
`

func buildHTML(markdown string, meta Meta) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}

	var metaHTML strings.Builder
	if meta.CaseID != "" {
		metaHTML.WriteString("<div><strong>Sprawa:</strong> " + html.EscapeString(meta.CaseID) + "</div>")
	}
	if !meta.GeneratedAt.IsZero() {
		metaHTML.WriteString("<div><strong>Data wygenerowania:</strong> " + html.EscapeString(meta.GeneratedAt.Format("02.01.2006 15:04")) + "</div>")
	}
	badge := ""
	if meta.Standpoint != "" {
		badge = "<span class='draft-badge'>" + html.EscapeString(meta.Standpoint) + "</span>"
	}

	return "<!doctype html><html><head><meta charset='utf-8'><title>Karta Wypadku</title>" +
		"<style>" + styleCSS +
		"html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;} " +
		"@media print{ @page{size:auto;margin:12mm;} }" +
		"</style></head><body>" +
		"<div class='draft-meta'>" + metaHTML.String() + badge + "</div>" +
		content.String() +
		"</body></html>", nil
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
