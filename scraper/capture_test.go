package scraper

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// The frame wait in capture and the stale-frame removal in cleanup share
// selPrintIframe; both must match exactly the blob-backed frames.
func TestPrintFrameSelectorMatchesOnlyBlobFrames(t *testing.T) {
	const page = `<html><body>
		<iframe src="blob:https://portal.example/7f3a"></iframe>
		<iframe src="https://portal.example/widget"></iframe>
		<iframe></iframe>
	</body></html>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	matches := doc.FindMatcher(cascadia.MustCompile(selPrintIframe))
	if matches.Length() != 1 {
		t.Fatalf("matched %d frames, want only the blob frame", matches.Length())
	}
	src, _ := matches.Attr("src")
	if !strings.HasPrefix(src, "blob:") {
		t.Errorf("matched frame src = %q", src)
	}
}

func TestBlobSource(t *testing.T) {
	blob := "blob:https://portal.example/7f3a"
	remote := "https://portal.example/doc.pdf"

	cases := []struct {
		name    string
		attr    *string
		want    string
		wantErr bool
	}{
		{"blob url", &blob, blob, false},
		{"non-blob url", &remote, "", true},
		{"missing attribute", nil, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := blobSource(tc.attr)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				if strings.Contains(err.Error(), "%!w") {
					t.Errorf("malformed error message: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("blobSource: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDecodeBlobPayload(t *testing.T) {
	payload := []byte("%PDF-1.7 fake body")
	dataURL := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(payload)

	got, err := decodeBlobPayload(dataURL)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("decoded %q, want %q", got, payload)
	}

	if _, err := decodeBlobPayload("data:text/plain,hello"); err == nil {
		t.Error("expected an error for a non-base64 data URL")
	}
	if _, err := decodeBlobPayload("data:application/pdf;base64,!!!"); err == nil {
		t.Error("expected an error for an invalid payload")
	}
}
