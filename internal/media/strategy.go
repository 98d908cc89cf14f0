package media

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/apperr"
)

// strategy renders one Kind and knows what to offer when it cannot.
type strategy interface {
	render(ctx context.Context, r *Resolver, p *Preview) error
	fallback() string
}

func strategyFor(k Kind) strategy {
	switch k {
	case KindImage:
		return imageStrategy{}
	case KindAudio:
		return mediaStrategy{kind: KindAudio}
	case KindVideo:
		return mediaStrategy{kind: KindVideo}
	case KindPDF:
		return pdfStrategy{}
	case KindText:
		return textStrategy{}
	default:
		return unsupportedStrategy{}
	}
}

func renderFailed(op string, err error) error {
	return apperr.New(op, apperr.KindRenderFailed, err)
}

type imageStrategy struct{}

func (imageStrategy) fallback() string { return "Unable to display image" }

func (imageStrategy) render(ctx context.Context, r *Resolver, p *Preview) error {
	const op = "media.image"
	_, data, err := r.files.Fetch(ctx, p.URL, 0, r.cfg.MaxImageBytes)
	if err != nil {
		return renderFailed(op, err)
	}
	p.Inline.Bytes = len(data)

	if isSVG(data) {
		w, h, err := svgSize(data)
		if err != nil {
			return renderFailed(op, err)
		}
		p.Inline.Format, p.Inline.Width, p.Inline.Height = "svg", w, h
		return nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return renderFailed(op, err)
	}
	p.Inline.Format, p.Inline.Width, p.Inline.Height = format, cfg.Width, cfg.Height
	return nil
}

func isSVG(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// svgSize reads the root element's width and height. Missing or relative
// dimensions come back as zero.
func svgSize(data []byte) (int, int, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0, fmt.Errorf("no svg root element: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "svg" {
			return 0, 0, fmt.Errorf("root element is %q, not svg", start.Name.Local)
		}
		var w, h int
		for _, a := range start.Attr {
			switch a.Name.Local {
			case "width":
				w = parseLength(a.Value)
			case "height":
				h = parseLength(a.Value)
			}
		}
		return w, h, nil
	}
}

func parseLength(v string) int {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// mediaStrategy covers audio and video: the container is sniffed from the
// first bytes within a short wait.
type mediaStrategy struct {
	kind Kind
}

func (s mediaStrategy) fallback() string {
	return fmt.Sprintf("Unable to play %s in browser", s.kind)
}

func (s mediaStrategy) render(ctx context.Context, r *Resolver, p *Preview) error {
	op := "media." + string(s.kind)
	wctx, cancel := context.WithTimeout(ctx, r.cfg.MediaWait)
	defer cancel()

	_, data, err := r.files.Fetch(wctx, p.URL, r.cfg.MediaHead, 0)
	if err != nil {
		if timedOut(ctx, err) {
			return apperr.Newf(op, apperr.KindRenderFailed, "no media data within %s", r.cfg.MediaWait)
		}
		return renderFailed(op, err)
	}

	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		mt := m.String()
		if strings.HasPrefix(mt, "audio/") || strings.HasPrefix(mt, "video/") || mt == "application/ogg" {
			p.Inline.MIME = mimetype.Detect(data).String()
			p.Inline.Bytes = len(data)
			return nil
		}
	}
	return apperr.Newf(op, apperr.KindRenderFailed, "unrecognized %s container %s", s.kind, mimetype.Detect(data))
}

type pdfStrategy struct{}

func (pdfStrategy) fallback() string { return "Unable to display PDF inline. Open in new tab" }

func (pdfStrategy) render(ctx context.Context, r *Resolver, p *Preview) error {
	const op = "media.pdf"
	view := r.files.PDFProxyURL(p.URL)

	wctx, cancel := context.WithTimeout(ctx, r.cfg.PDFWait)
	defer cancel()

	_, data, err := r.files.Fetch(wctx, view, 1024, 0)
	if err != nil {
		if timedOut(ctx, err) {
			return apperr.Newf(op, apperr.KindRenderFailed, "viewer did not load within %s", r.cfg.PDFWait)
		}
		return renderFailed(op, err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return apperr.Newf(op, apperr.KindRenderFailed, "proxy did not return a PDF")
	}
	p.Inline.ViewURL = view
	p.Inline.MIME = "application/pdf"
	return nil
}

type textStrategy struct{}

func (textStrategy) fallback() string { return "Unable to display text file" }

func (textStrategy) render(ctx context.Context, r *Resolver, p *Preview) error {
	const op = "media.text"
	_, data, err := r.files.Fetch(ctx, p.URL, 0, r.cfg.MaxTextBytes+1)
	if err != nil {
		return renderFailed(op, err)
	}

	if int64(len(data)) > r.cfg.MaxTextBytes {
		data = trimPartialRune(data[:r.cfg.MaxTextBytes])
		p.Inline.Truncated = true
	}
	if !utf8.Valid(data) {
		p.Inline.Truncated = false
		return apperr.Newf(op, apperr.KindRenderFailed, "file is not valid UTF-8 text")
	}
	p.Inline.Text = sanitize(string(data))
	p.Inline.Bytes = len(data)
	return nil
}

// trimPartialRune drops a rune split by truncation.
func trimPartialRune(data []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(data) > 0; i++ {
		r, size := utf8.DecodeLastRune(data)
		if r != utf8.RuneError || size > 1 {
			return data
		}
		data = data[:len(data)-1]
	}
	return data
}

// sanitize drops control characters other than newline and tab so file
// contents cannot drive the terminal.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

type unsupportedStrategy struct{}

func (unsupportedStrategy) fallback() string { return MsgUnsupported }

func (unsupportedStrategy) render(context.Context, *Resolver, *Preview) error {
	return apperr.Newf("media.unsupported", apperr.KindUnsupported, "no inline preview for this file type")
}
