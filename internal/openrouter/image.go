package openrouter

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoImage means the response matched none of the recognised image shapes.
var ErrNoImage = errors.New("openrouter: no image in response")

// ImageShape names where in a response an image was found.
type ImageShape string

const (
	ShapeMessageImages ImageShape = "message_images" // choices[].message.images[].image_url.url
	ShapeContentPart   ImageShape = "content_part"   // content part of type image_url
	ShapeDataURI       ImageShape = "data_uri"       // content text is a data: URI
	ShapeRemoteURL     ImageShape = "remote_url"     // content text is an http(s) URL
	ShapeMarkdown      ImageShape = "markdown"       // content text holds ![alt](url)
)

type Image struct {
	URL   string
	Shape ImageShape
}

// IsDataURI reports whether the image is inline and must be stored before use.
func (i Image) IsDataURI() bool {
	return strings.HasPrefix(i.URL, "data:")
}

var markdownImage = regexp.MustCompile(`!\[[^\]]*\]\(\s*([^)\s]+)\s*\)`)

// ExtractImage finds the first generated image in resp, checking each
// recognised shape in order across all choices.
func ExtractImage(resp *Response) (Image, error) {
	if resp == nil {
		return Image{}, ErrNoImage
	}

	for _, choice := range resp.Choices {
		for _, img := range choice.Message.Images {
			if img.ImageURL != nil && isImageRef(img.ImageURL.URL) {
				return Image{URL: img.ImageURL.URL, Shape: ShapeMessageImages}, nil
			}
		}
	}

	for _, choice := range resp.Choices {
		for _, part := range choice.Message.Parts() {
			if part.Type == "image_url" && part.ImageURL != nil && isImageRef(part.ImageURL.URL) {
				return Image{URL: part.ImageURL.URL, Shape: ShapeContentPart}, nil
			}
		}
	}

	for _, choice := range resp.Choices {
		for _, part := range choice.Message.Parts() {
			if part.Type != "text" {
				continue
			}
			if img, ok := imageFromText(part.Text); ok {
				return img, nil
			}
		}
	}

	finish := ""
	if len(resp.Choices) > 0 {
		finish = resp.Choices[0].FinishReason
	}
	return Image{}, fmt.Errorf("%w (choices=%d, finish_reason=%q)", ErrNoImage, len(resp.Choices), finish)
}

func imageFromText(text string) (Image, bool) {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "data:image/") && !strings.ContainsAny(text, " \n"):
		return Image{URL: text, Shape: ShapeDataURI}, true
	case (strings.HasPrefix(text, "https://") || strings.HasPrefix(text, "http://")) && !strings.ContainsAny(text, " \n"):
		return Image{URL: text, Shape: ShapeRemoteURL}, true
	}
	if m := markdownImage.FindStringSubmatch(text); m != nil && isImageRef(m[1]) {
		return Image{URL: m[1], Shape: ShapeMarkdown}, true
	}
	return Image{}, false
}

func isImageRef(s string) bool {
	return strings.HasPrefix(s, "data:image/") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// DecodeDataURI splits a base64 data URI into its mime type and bytes.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("malformed data URI")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, errors.New("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return mimeType, data, nil
}
