package media

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		declared string
		url      string
		want     Kind
	}{
		{"", "/files/notes.pdf", KindPDF},
		{"document", "/files/notes.pdf", KindPDF},
		{"", "/files/chant.mp3", KindAudio},
		{"", "/files/archive.xyz", KindUnsupported},
		{"", "/files/noext", KindUnsupported},
		{"audio", "/files/blob.bin", KindAudio},
		{"audio/mpeg", "/files/blob", KindAudio},
		{"video", "/files/clip.pdf", KindVideo},
		{"video/mp4", "", KindVideo},
		{"image", "/files/x", KindImage},
		{"image/png", "/files/x.pdf", KindImage},
		{"application/pdf", "/files/x", KindPDF},
		{"text", "/files/x", KindText},
		{"text/plain; charset=utf-8", "/files/x", KindText},
		{"application/json", "/files/x", KindText},
		{"application/xml", "/files/x", KindText},
		{"unknown", "https://cdn.example.com/a/B.PNG?sig=abc", KindImage},
		{"", "https://cdn.example.com/lesson.webm#t=10", KindVideo},
		{"", "/files/readme.md", KindText},
		{"", "/files/slides.pptx", KindUnsupported},
	}
	for _, tt := range tests {
		if got := Classify(tt.declared, tt.url); got != tt.want {
			t.Errorf("Classify(%q, %q) = %s, want %s", tt.declared, tt.url, got, tt.want)
		}
	}
}
