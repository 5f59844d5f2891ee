package extract

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WEBP decoder

	"bloodagent/internal/domain"
)

// visionNative lists the image types every backend accepts without conversion.
var visionNative = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// normalizeImage returns an image payload a vision backend can read. TIFF and
// BMP scans are re-encoded as PNG.
func normalizeImage(data []byte, contentType string) (domain.Image, error) {
	if visionNative[contentType] {
		return domain.Image{Data: data, MediaType: contentType}, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return domain.Image{}, fmt.Errorf("decoding %s image: %w", contentType, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return domain.Image{}, fmt.Errorf("re-encoding %s as png: %w", format, err)
	}
	return domain.Image{Data: buf.Bytes(), MediaType: "image/png"}, nil
}
