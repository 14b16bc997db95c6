// Package eml provides a Normaliser for saved email messages (.eml).
package eml

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/custodia-labs/neurovault/internal/core/domain"
	"github.com/custodia-labs/neurovault/internal/core/ports/driven"
	"github.com/custodia-labs/neurovault/internal/normalisers/html"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// maxDepth bounds multipart nesting.
const maxDepth = 5

// Normaliser handles EML (email) documents.
type Normaliser struct{}

// New creates a new EML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"message/rfc822"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser
}

// Normalise renders the message as its headers followed by the body.
// Plain text parts are preferred over HTML ones. The subject is the title.
func (n *Normaliser) Normalise(_ context.Context, file *domain.SourceFile) (*domain.NormalisedText, error) {
	if file == nil {
		return nil, domain.ErrInvalidInput
	}

	msg, err := mail.ReadMessage(bytes.NewReader(file.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	body, err := partText(msg.Header, msg.Body, 0)
	if err != nil {
		return nil, err
	}

	subject := decodeHeader(msg.Header.Get("Subject"))

	var b strings.Builder
	for _, h := range []struct{ label, value string }{
		{"From", decodeHeader(msg.Header.Get("From"))},
		{"To", decodeHeader(msg.Header.Get("To"))},
		{"Date", msg.Header.Get("Date")},
		{"Subject", subject},
	} {
		if h.value != "" {
			fmt.Fprintf(&b, "%s: %s\n", h.label, h.value)
		}
	}
	b.WriteString("\n")
	b.WriteString(body)

	title := subject
	if title == "" {
		title = domain.TitleFromPath(file.Path)
	}

	return &domain.NormalisedText{
		Title:  title,
		Text:   strings.TrimSpace(b.String()),
		Format: "eml",
	}, nil
}

// header is the subset of a MIME header a part needs.
type header interface {
	Get(key string) string
}

// partText returns the readable text of one MIME entity.
func partText(h header, r io.Reader, depth int) (string, error) {
	contentType := h.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, params = "text/plain", nil
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		if depth >= maxDepth {
			return "", nil
		}
		return multipartText(r, params["boundary"], depth+1)
	}
	if mediaType != "text/plain" && mediaType != "text/html" {
		return "", nil
	}

	raw, err := io.ReadAll(transferDecoder(h.Get("Content-Transfer-Encoding"), r))
	if err != nil {
		return "", fmt.Errorf("%w: reading body: %w", domain.ErrInvalidInput, err)
	}
	text := decodeCharset(params["charset"], raw)
	if mediaType == "text/html" {
		return html.StripTags(text), nil
	}
	return strings.TrimSpace(text), nil
}

// multipartText prefers text/plain parts and falls back to HTML ones.
// Attachments are skipped.
func multipartText(r io.Reader, boundary string, depth int) (string, error) {
	if boundary == "" {
		return "", nil
	}

	mr := multipart.NewReader(r, boundary)
	var plain, rich []string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Keep what was readable before the damage.
			break
		}
		if part.FileName() != "" {
			part.Close()
			continue
		}

		text, err := partText(part.Header, part, depth)
		mediaType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		part.Close()
		if err != nil || text == "" {
			continue
		}
		if mediaType == "text/html" {
			rich = append(rich, text)
		} else {
			plain = append(plain, text)
		}
	}

	if len(plain) > 0 {
		return strings.Join(plain, "\n"), nil
	}
	return strings.Join(rich, "\n"), nil
}

// transferDecoder undoes a Content-Transfer-Encoding. The multipart reader
// already decodes quoted-printable parts and drops the header.
func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

// decodeCharset converts a body in the named charset to UTF-8.
// Unknown charsets are passed through unchanged.
func decodeCharset(charset string, raw []byte) string {
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "us-ascii") {
		return string(raw)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(raw)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

var wordDecoder = &mime.WordDecoder{
	CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, err
		}
		return enc.NewDecoder().Reader(input), nil
	},
}

// decodeHeader decodes RFC 2047 encoded words, keeping the raw value on failure.
func decodeHeader(value string) string {
	if value == "" {
		return ""
	}
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
