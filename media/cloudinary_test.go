package media

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"beatspace/apperr"
)

func testUploader(baseURL string) *Cloudinary {
	c := NewCloudinary("demo", "key-1", "shh")
	c.BaseURL = baseURL
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestSign(t *testing.T) {
	got := Sign(map[string]string{"timestamp": "1315060510", "public_id": "sample_image"}, "abcd")
	// Reference value from the upload API documentation.
	want := "b4ad47fb4e25c7bf5f92a20089f9db59bc302313"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestUploadSendsSignedForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/demo/image/upload" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		params := map[string]string{"timestamp": "1700000000", "folder": defaultFolder}
		if r.FormValue("signature") != Sign(params, "shh") {
			t.Errorf("bad signature %s", r.FormValue("signature"))
		}
		if r.FormValue("api_key") != "key-1" || r.FormValue("timestamp") != "1700000000" {
			t.Errorf("unexpected fields %v", r.MultipartForm.Value)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file: %v", err)
		} else {
			data, _ := io.ReadAll(file)
			if string(data) != "png-bytes" || header.Filename != "photo.png" {
				t.Errorf("unexpected file %q %q", header.Filename, data)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"secure_url":"https://cdn.example/photo.png","public_id":"beatspace/assets/photo"}`))
	}))
	defer srv.Close()

	res, err := testUploader(srv.URL).Upload(context.Background(), "photo.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.URL != "https://cdn.example/photo.png" || res.PublicID != "beatspace/assets/photo" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestUploadRejectedIsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Invalid Signature"}}`))
	}))
	defer srv.Close()

	_, err := testUploader(srv.URL).Upload(context.Background(), "photo.png", strings.NewReader("x"))
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected Upstream, got %v", err)
	}
	if apperr.HTTPStatus(err) != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", apperr.HTTPStatus(err))
	}
}

func TestUploadUnconfigured(t *testing.T) {
	c := NewCloudinary("", "", "")
	if c.Configured() {
		t.Fatal("expected unconfigured uploader")
	}
	if _, err := c.Upload(context.Background(), "photo.png", strings.NewReader("x")); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected Upstream, got %v", err)
	}
}
