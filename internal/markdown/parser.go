package markdown

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// Parser renders user-written markdown (quest descriptions) to HTML.
// Raw HTML in the source is escaped; goldmark only emits it with WithUnsafe.
type Parser struct {
	md goldmark.Markdown
}

func NewParser() *Parser {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
		),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithHardWraps(),
			goldmarkhtml.WithXHTML(),
		),
	)

	return &Parser{
		md: md,
	}
}

func (p *Parser) Parse(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	err := p.md.Convert(source, &buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderString is Parse for strings; an empty source renders as "".
func (p *Parser) RenderString(source string) (string, error) {
	if source == "" {
		return "", nil
	}
	out, err := p.Parse([]byte(source))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

var defaultParser = NewParser()

// RenderString renders source with a shared default parser.
func RenderString(source string) (string, error) {
	return defaultParser.RenderString(source)
}
