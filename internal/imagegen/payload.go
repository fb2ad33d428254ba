package imagegen

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// PayloadKind identifies the shape an image payload arrived in.
type PayloadKind int

const (
	PayloadURL PayloadKind = iota
	PayloadBase64
	PayloadRaw
)

// Payload is an image result in one of three wire shapes. The shape is
// decided once when the payload is constructed; Materialize handles each
// shape with its own normalization path.
type Payload struct {
	Kind   PayloadKind
	URL    string
	Base64 string
	Raw    []byte
}

// ClassifyPayload builds a Payload from a string returned in a job result.
// Values starting with a URL scheme are fetched remotely, anything else is
// treated as base64-encoded image data.
func ClassifyPayload(value string) Payload {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return Payload{Kind: PayloadURL, URL: value}
	}
	return Payload{Kind: PayloadBase64, Base64: value}
}

// RawPayload wraps bytes received directly in a submission response.
func RawPayload(data []byte) Payload {
	return Payload{Kind: PayloadRaw, Raw: data}
}

// Materialize writes the payload's image bytes to a temp file and returns
// its path. A zero-byte result is an error, never an empty artifact.
func (p Payload) Materialize(ctx context.Context, client *http.Client) (string, error) {
	var data []byte
	var err error

	switch p.Kind {
	case PayloadURL:
		data, err = fetchURL(ctx, client, p.URL)
	case PayloadBase64:
		data, err = base64.StdEncoding.DecodeString(p.Base64)
	case PayloadRaw:
		data = p.Raw
	default:
		return "", fmt.Errorf("unknown payload kind %d", p.Kind)
	}
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("image payload is empty")
	}

	f, err := os.CreateTemp("", "skazka-img-*.jpg")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close image file: %w", err)
	}
	return f.Name(), nil
}

func fetchURL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image url request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image url returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
