package html

import (
	"context"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise strips tags, scripts and styles and returns the readable text.
// The title comes from <title>, falling back to the file name.
func (n *Normaliser) Normalise(_ context.Context, file *domain.SourceFile) (*domain.NormalisedText, error) {
	if file == nil {
		return nil, domain.ErrInvalidInput
	}

	title, text := extract(string(file.Content))
	if title == "" {
		title = domain.TitleFromPath(file.Path)
	}

	return &domain.NormalisedText{
		Title:  title,
		Text:   text,
		Format: "html",
	}, nil
}

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Svg:      true,
	atom.Template: true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Li: true, atom.Tr: true, atom.Blockquote: true, atom.Pre: true,
	atom.Table: true, atom.Section: true, atom.Article: true,
}

// extract walks the token stream once and splits the page into its
// title and its visible text.
func extract(content string) (title, text string) {
	z := xhtml.NewTokenizer(strings.NewReader(content))

	var t, b strings.Builder
	depth := 0
	inTitle := false

	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			return strings.TrimSpace(t.String()), tidy(b.String())

		case xhtml.StartTagToken, xhtml.SelfClosingTagToken, xhtml.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case a == atom.Title:
				inTitle = tt == xhtml.StartTagToken
			case skipped[a]:
				if tt == xhtml.StartTagToken {
					depth++
				} else if tt == xhtml.EndTagToken && depth > 0 {
					depth--
				}
			case blocks[a] && depth == 0:
				b.WriteByte('\n')
			}

		case xhtml.TextToken:
			switch {
			case inTitle:
				t.Write(z.Text())
			case depth == 0:
				b.Write(z.Text())
			}
		}
	}
}

// tidy collapses runs of whitespace and drops empty lines.
func tidy(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Title returns the decoded <title> of a page, or "".
func Title(content string) string {
	title, _ := extract(content)
	return title
}

// StripTags removes markup and returns one trimmed line per block of text.
// Email bodies reuse it for their HTML parts.
func StripTags(content string) string {
	_, text := extract(content)
	return text
}
