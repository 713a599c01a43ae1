package mapper

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"sisimport/internal/canvas"
	"sisimport/internal/files"
)

//go:embed templates/page.html.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/page.html.tmpl"))

// PageInput is everything needed to map one supplementary content page.
type PageInput struct {
	Course    *canvas.Course
	Title     string
	Blocks    []files.ResolvedBlock
	Layout    int
	FrontPage bool
}

type linkView struct {
	URL   string
	Label string
}

type fileView struct {
	Link  template.HTML
	Label string
}

type blockView struct {
	Title string
	Body  template.HTML
	Links []linkView
	Files []fileView
}

type pageView struct {
	Columns string
	Blocks  []blockView
}

// Columns returns the CSS class for a snapshot layout id.
func Columns(layout int) string {
	switch layout {
	case 2:
		return "sis-columns-2"
	case 3:
		return "sis-columns-3"
	default:
		return "sis-columns-1"
	}
}

// Page renders a page body from resolved blocks. Downloads without an
// uploaded ref link to their original URL.
func Page(in PageInput) (canvas.PageParams, error) {
	view := pageView{Columns: Columns(in.Layout)}
	for _, b := range in.Blocks {
		bv := blockView{
			Title: b.Title,
			// Block bodies are already HTML in the snapshot.
			Body: template.HTML(b.HTML),
		}
		for _, l := range b.Links {
			bv.Links = append(bv.Links, linkView{URL: l.URL, Label: l.ShortDescription})
		}
		for i, d := range b.Downloads {
			if i < len(b.Files) {
				bv.Files = append(bv.Files, fileView{Link: template.HTML(b.Files[i].Link()), Label: d.ShortDescription})
				continue
			}
			name := d.FriendlyFileName
			if name == "" {
				name = d.DownloadURL.URL
			}
			bv.Links = append(bv.Links, linkView{URL: d.DownloadURL.URL, Label: name})
		}
		view.Blocks = append(view.Blocks, bv)
	}

	var body bytes.Buffer
	if err := pageTemplate.Execute(&body, view); err != nil {
		return canvas.PageParams{}, fmt.Errorf("render page %q: %w", in.Title, err)
	}
	return canvas.PageParams{
		Title:     in.Title,
		Body:      body.String(),
		Published: true,
		FrontPage: in.FrontPage,
	}, nil
}
