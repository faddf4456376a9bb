// Package transcode resizes a source image to fit within a bounding box and
// re-encodes it as a JPEG derivative.
package transcode

import (
	"fmt"
	"image/jpeg"
	"os"

	"github.com/disintegration/imaging"

	"github.com/FalconSN/booruchan/pkg/pathutil"
)

const jpegQuality = 90

// Resize decodes src, fits it within maxW x maxH using Lanczos3 resampling,
// and writes a JPEG quality-90 derivative to the path built from
// destParts. If destParts' parent directory cannot be created due to a
// permission error, fallback is substituted for its first component; if
// creation still fails, Resize returns an error the caller should treat as
// fatal for the process.
//
// If dest already exists with non-zero size, it is removed first:
// compression is deterministic and idempotent by overwrite, not resumable.
//
// A decode failure returns ("", false, nil): the caller should treat this
// as "no derivative produced", not a crash.
func Resize(src string, destParts []string, maxW, maxH int, fallback string) (string, bool, error) {
	dest, err := pathutil.EnsureParentDir(destParts, fallback)
	if err != nil {
		return "", false, fmt.Errorf("transcode: %w", err)
	}

	if pathutil.SizeNonZero(dest) {
		if err := os.Remove(dest); err != nil {
			return "", false, fmt.Errorf("transcode: removing existing derivative %s: %w", dest, err)
		}
	}

	img, err := imaging.Open(src)
	if err != nil {
		return "", false, nil
	}

	resized := imaging.Fit(img, maxW, maxH, imaging.Lanczos)

	out, err := os.Create(dest)
	if err != nil {
		return "", false, fmt.Errorf("transcode: creating %s: %w", dest, err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", false, fmt.Errorf("transcode: encoding %s: %w", dest, err)
	}

	return dest, true, nil
}
