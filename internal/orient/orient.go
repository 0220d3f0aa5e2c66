// Package orient normalises photo orientation before analysis.
package orient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/disintegration/imaging"
)

// maxPixels bounds the decoded size of a fetched image.
const maxPixels = 40_000_000

var (
	ErrInvalidURL      = errors.New("url must be an absolute http or https URL")
	ErrTooLarge        = errors.New("image exceeds size limit")
	ErrInvalidRotation = errors.New("rotate must be 0, 90, 180 or 270")
	ErrDecode          = errors.New("could not decode image")
)

// Request describes one orientation job. Rotate wins over RefURL, which wins
// over PreferPortrait.
type Request struct {
	URL            string
	RefURL         string
	PreferPortrait bool
	Rotate         *int
}

type Orienter struct {
	client   *http.Client
	maxBytes int64
}

func New(maxBytes int64, timeout time.Duration) *Orienter {
	if maxBytes <= 0 {
		maxBytes = 15 << 20
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Orienter{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Orient fetches the image, applies EXIF orientation and the requested
// rotation rule, and returns a JPEG.
func (o *Orienter) Orient(ctx context.Context, req Request) ([]byte, error) {
	if req.Rotate != nil && !validRotation(*req.Rotate) {
		return nil, ErrInvalidRotation
	}

	img, err := o.load(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	switch {
	case req.Rotate != nil:
		img = Rotate(img, *req.Rotate)
	case req.RefURL != "":
		ref, err := o.load(ctx, req.RefURL)
		if err != nil {
			return nil, fmt.Errorf("failed to load reference image: %w", err)
		}
		if IsPortrait(ref) != IsPortrait(img) {
			img = Rotate(img, 90)
		}
	case req.PreferPortrait && !IsPortrait(img):
		img = Rotate(img, 90)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (o *Orienter) load(ctx context.Context, rawURL string) (image.Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch image: upstream status %d", resp.StatusCode)
	}
	if resp.ContentLength > o.maxBytes {
		return nil, ErrTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, o.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > o.maxBytes {
		return nil, ErrTooLarge
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

func IsPortrait(img image.Image) bool {
	b := img.Bounds()
	return b.Dy() >= b.Dx()
}

// Rotate turns img clockwise by degrees (0, 90, 180 or 270).
func Rotate(img image.Image, degrees int) image.Image {
	// imaging rotates counter-clockwise
	switch degrees {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	}
	return img
}

func validRotation(degrees int) bool {
	switch degrees {
	case 0, 90, 180, 270:
		return true
	}
	return false
}
