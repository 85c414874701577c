package storage

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"os"
	"strings"

	"github.com/gen2brain/heic"
)

// ErrUndecodableImage is returned when bytes are not a supported raster image
var ErrUndecodableImage = errors.New("undecodable image")

// DecodeImage decodes PNG, JPEG, GIF or HEIC/HEIF data into a pixel buffer
// and reports the detected format
func DecodeImage(data []byte, contentType string) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty file", ErrUndecodableImage)
	}

	// Go's standard image package doesn't handle HEIC (common on iPhones)
	if isHEICFormat(data) || isHEICMimeType(contentType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("%w: decoding HEIC/HEIF image: %v", ErrUndecodableImage, err)
		}
		return img, "heic", nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", fmt.Errorf("%w: unsupported format (supported: PNG, JPEG, GIF, HEIC, HEIF)", ErrUndecodableImage)
		}
		return nil, "", fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}
	return img, format, nil
}

// LoadImageFile reads and decodes an image from disk
func LoadImageFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image file: %w", err)
	}
	img, _, err := DecodeImage(data, "")
	return img, err
}

// isHEICFormat checks for an ftyp box with a HEIC-family brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
