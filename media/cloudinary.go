// Package media stores listing photos on the image CDN.
package media

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"beatspace/apperr"
	"beatspace/config"
)

const (
	defaultBaseURL = "https://api.cloudinary.com/v1_1"
	defaultFolder  = "beatspace/assets"
)

// Uploader stores an image and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*Result, error)
}

type Result struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// Cloudinary uploads with the signed upload API.
type Cloudinary struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	BaseURL   string
	Client    *http.Client
	now       func() time.Time
}

func NewCloudinary(cloudName, apiKey, apiSecret string) *Cloudinary {
	return &Cloudinary{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    defaultFolder,
		BaseURL:   defaultBaseURL,
		Client:    &http.Client{Timeout: 30 * time.Second},
		now:       time.Now,
	}
}

// FromConfig builds the uploader from the CLOUDINARY_* settings.
func FromConfig() *Cloudinary {
	return NewCloudinary(config.CloudinaryCloudName, config.CloudinaryAPIKey, config.CloudinaryAPISecret)
}

func (c *Cloudinary) Configured() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	PublicID  string `json:"public_id"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Cloudinary) Upload(ctx context.Context, filename string, r io.Reader) (*Result, error) {
	if !c.Configured() {
		return nil, apperr.New(apperr.KindUpstream, "image uploads are not configured")
	}

	params := map[string]string{
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	if c.Folder != "" {
		params["folder"] = c.Folder
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for key, value := range params {
		if err := form.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	if err := form.WriteField("api_key", c.APIKey); err != nil {
		return nil, err
	}
	if err := form.WriteField("signature", Sign(params, c.APISecret)); err != nil {
		return nil, err
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "could not read the uploaded file", err)
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s/image/upload", strings.TrimRight(c.BaseURL, "/"), c.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.Client.Do(req)
	if err != nil {
		slog.Error("image upload failed", "event", "upload_failed", "module", "media", "error", err)
		return nil, apperr.Wrap(apperr.KindUpstream, "image upload failed", err)
	}
	defer resp.Body.Close()

	var out uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, apperr.Wrap(apperr.KindUpstream, "image upload failed", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err))
	}
	if resp.StatusCode != http.StatusOK || out.SecureURL == "" {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		slog.Error("image upload rejected", "event", "upload_failed", "module", "media", "status", resp.StatusCode, "reason", msg)
		return nil, apperr.Wrap(apperr.KindUpstream, "image upload failed", fmt.Errorf("cdn status %d: %s", resp.StatusCode, msg))
	}

	slog.Info("image uploaded", "event", "image_uploaded", "module", "media", "public_id", out.PublicID)
	return &Result{URL: out.SecureURL, PublicID: out.PublicID}, nil
}

// Sign computes the upload signature: the parameters sorted by name, joined
// as k=v pairs with '&', followed by the API secret, SHA-1 hex encoded.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}
