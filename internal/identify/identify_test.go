package identify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIdentify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/v2/identify/all" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-key"); got != "secret" {
			t.Errorf("api-key = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("organs"); got != "leaf" {
			t.Errorf("organs = %q, want leaf", got)
		}
		f, hdr, err := r.FormFile("images")
		if err != nil {
			t.Fatalf("images part: %v", err)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "jpegbytes" || hdr.Filename != "fern.jpg" {
			t.Errorf("image = %q (%s)", data, hdr.Filename)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("image content type = %q, want image/jpeg by default", ct)
		}

		w.Write([]byte(`{"results":[
			{"score":0.87,"species":{"scientificNameWithoutAuthor":"Nephrolepis exaltata","commonNames":["Boston fern","Sword fern"]},"gbif":{"id":"2650103"}},
			{"score":0.05,"species":{"scientificNameWithoutAuthor":"Other","commonNames":[]}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("secret", srv.URL)
	g, err := c.Identify(context.Background(), strings.NewReader("jpegbytes"), "fern.jpg", "")
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if g.ScientificName != "Nephrolepis exaltata" {
		t.Errorf("scientific name = %q", g.ScientificName)
	}
	if g.CommonName() != "Boston fern" {
		t.Errorf("common name = %q", g.CommonName())
	}
	if g.Score != 0.87 {
		t.Errorf("score = %v", g.Score)
	}
	if g.GbifURL != "https://www.gbif.org/species/2650103" {
		t.Errorf("gbif url = %q", g.GbifURL)
	}
}

func TestIdentifySendsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		_, hdr, err := r.FormFile("images")
		if err != nil {
			t.Fatalf("images part: %v", err)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("image content type = %q, want image/png", ct)
		}
		w.Write([]byte(`{"results":[{"score":0.5,"species":{"scientificNameWithoutAuthor":"X"}}]}`))
	}))
	defer srv.Close()

	if _, err := NewClient("k", srv.URL).Identify(context.Background(), strings.NewReader("png"), "leaf.png", "image/png"); err != nil {
		t.Fatalf("identify: %v", err)
	}
}

func TestIdentifyNumericGbifID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"score":0.5,"species":{"scientificNameWithoutAuthor":"X"},"gbif":{"id":42}}]}`))
	}))
	defer srv.Close()

	g, err := NewClient("k", srv.URL).Identify(context.Background(), strings.NewReader("x"), "", "")
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if g.GbifURL != "https://www.gbif.org/species/42" {
		t.Errorf("gbif url = %q", g.GbifURL)
	}
	if g.CommonName() != "" || g.CommonNames == nil {
		t.Errorf("common names = %v, want empty non-nil", g.CommonNames)
	}
}

func TestIdentifyNoMatch(t *testing.T) {
	for _, tt := range []struct {
		name   string
		status int
		body   string
	}{
		{"empty results", http.StatusOK, `{"results":[]}`},
		{"not found", http.StatusNotFound, `{"message":"Species not found"}`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient("k", srv.URL).Identify(context.Background(), strings.NewReader("x"), "a.jpg", "")
			if !errors.Is(err, ErrNoMatch) {
				t.Errorf("err = %v, want ErrNoMatch", err)
			}
		})
	}
}

func TestIdentifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient("k", srv.URL).Identify(context.Background(), strings.NewReader("x"), "a.jpg", "")
	if err == nil || errors.Is(err, ErrNoMatch) {
		t.Errorf("err = %v, want status error", err)
	}
}

func TestIdentifyNotConfigured(t *testing.T) {
	_, err := NewClient("", "").Identify(context.Background(), strings.NewReader("x"), "a.jpg", "")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
