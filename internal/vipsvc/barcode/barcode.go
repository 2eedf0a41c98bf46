// Package barcode renders card codes as Code128 PNG images. Images are
// built per request and embedded inline, nothing is written to disk.
package barcode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"

	bcode "github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
)

const (
	DefaultWidth  = 400
	DefaultHeight = 120
)

var ErrEmptyCode = errors.New("empty card code")

// RenderPNG encodes the card code as a Code128 barcode scaled to the
// given size. Codes with characters outside the Code128 alphabet fail.
func RenderPNG(code string, width, height int) ([]byte, error) {
	if code == "" {
		return nil, ErrEmptyCode
	}

	encoded, err := code128.Encode(code)
	if err != nil {
		return nil, fmt.Errorf("encode code128 %q: %w", code, err)
	}

	scaled, err := bcode.Scale(encoded, width, height)
	if err != nil {
		return nil, fmt.Errorf("scale barcode: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encode barcode png: %w", err)
	}

	return buf.Bytes(), nil
}

// DataURI wraps PNG bytes for inline use in an <img> tag.
func DataURI(pngBytes []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}
