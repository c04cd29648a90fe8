package media

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// Quality sweep for iterative re-encoding. Stops at the first quality that
// fits under the destination ceiling.
var jpegQualities = []int{85, 75, 65, 50, 40, 30, 20, 10}

// transcode converts an image to JPEG under sizeCeiling bytes, capping the
// longest dimension at maxDim pixels first, then walking quality down.
// Non-image data is passed through untouched when it already fits.
func transcode(data []byte, maxDim int, sizeCeiling int64) ([]byte, string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		if int64(len(data)) <= sizeCeiling {
			return data, "", nil
		}
		return nil, "", fmt.Errorf("asset is %d bytes over ceiling and not a decodable image: %w",
			int64(len(data))-sizeCeiling, err)
	}

	bounds := img.Bounds()
	if maxDim > 0 && (bounds.Dx() > maxDim || bounds.Dy() > maxDim) {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	for _, q := range jpegQualities {
		buf.Reset()
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
			return nil, "", fmt.Errorf("encoding jpeg at quality %d: %w", q, err)
		}
		if int64(buf.Len()) <= sizeCeiling {
			return buf.Bytes(), "image/jpeg", nil
		}
	}
	return nil, "", fmt.Errorf("image still %d bytes over ceiling at lowest quality",
		int64(buf.Len())-sizeCeiling)
}
