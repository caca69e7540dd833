package ai

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/mealtrack/pkg/models"
)

// ParseDataURI decodes a base64 "data:image/...;base64,..." URI captured from the camera.
func ParseDataURI(uri string) (*models.Image, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidMedia)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload separator", ErrInvalidMedia)
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, fmt.Errorf("%w: only base64 data URIs are supported", ErrInvalidMedia)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w: unsupported media type %q", ErrInvalidMedia, mime)
	}
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidMedia)
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMedia, err)
	}
	return &models.Image{MimeType: mime, Base64: payload}, nil
}
