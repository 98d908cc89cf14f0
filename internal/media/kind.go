package media

import (
	"net/url"
	"path"
	"strings"

	"github.com/shreyasrinivasan20111-lab/sloka4.0/internal/models"
)

// Kind selects how a file is previewed. It is decided once per request.
type Kind string

const (
	KindImage       Kind = "image"
	KindAudio       Kind = "audio"
	KindVideo       Kind = "video"
	KindPDF         Kind = "pdf"
	KindText        Kind = "text"
	KindUnsupported Kind = "unsupported"
)

var extKinds = map[string]Kind{
	"pdf":  KindPDF,
	"jpg":  KindImage,
	"jpeg": KindImage,
	"png":  KindImage,
	"gif":  KindImage,
	"webp": KindImage,
	"bmp":  KindImage,
	"svg":  KindImage,
	"mp3":  KindAudio,
	"wav":  KindAudio,
	"ogg":  KindAudio,
	"m4a":  KindAudio,
	"aac":  KindAudio,
	"mp4":  KindVideo,
	"webm": KindVideo,
	"ogv":  KindVideo,
	"avi":  KindVideo,
	"mov":  KindVideo,
	"txt":  KindText,
	"md":   KindText,
	"json": KindText,
	"xml":  KindText,
	"css":  KindText,
	"js":   KindText,
	"html": KindText,
}

// Classify picks a Kind from the declared type, which may be a document
// category or a MIME type, falling back to the URL's extension.
func Classify(declared, rawURL string) Kind {
	d := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(d, ';'); i >= 0 {
		d = strings.TrimSpace(d[:i])
	}

	switch {
	case d == string(models.FileTypeAudio) || strings.HasPrefix(d, "audio/"):
		return KindAudio
	case d == string(models.FileTypeVideo) || strings.HasPrefix(d, "video/"):
		return KindVideo
	case d == string(models.FileTypeImage) || strings.HasPrefix(d, "image/"):
		return KindImage
	case d == "application/pdf":
		return KindPDF
	case d == string(models.FileTypeText) || strings.HasPrefix(d, "text/"),
		d == "application/json", d == "application/xml":
		return KindText
	}

	if k, ok := extKinds[extension(rawURL)]; ok {
		return k
	}
	return KindUnsupported
}

func extension(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := path.Ext(p)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
