package render

import (
	"encoding/base64"
	"fmt"
	"strings"

	api "github.com/alantheprice/housegen/pkg/agent_api"
)

// ExtractErrorKind says why no image could be pulled from a reply.
type ExtractErrorKind int

const (
	ExtractNoChoices ExtractErrorKind = iota
	ExtractNoImages
	ExtractNotDataURI
	ExtractMalformedDataURI
	ExtractDecodeFailed
)

func (k ExtractErrorKind) String() string {
	switch k {
	case ExtractNoChoices:
		return "no choices"
	case ExtractNoImages:
		return "no images"
	case ExtractNotDataURI:
		return "not a data uri"
	case ExtractMalformedDataURI:
		return "malformed data uri"
	case ExtractDecodeFailed:
		return "base64 decode failed"
	default:
		return "unknown"
	}
}

type ExtractError struct {
	Kind  ExtractErrorKind
	Cause error
}

func (e *ExtractError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("image extraction: %s: %v", e.Kind, e.Cause)
	}
	return "image extraction: " + e.Kind.String()
}

func (e *ExtractError) Unwrap() error {
	return e.Cause
}

// TryExtractImage pulls the bytes of choices[0].message.images[0].image_url.url,
// which must be a "data:image..." URI with a base64 payload.
func TryExtractImage(resp *api.ChatResponse) ([]byte, *ExtractError) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, &ExtractError{Kind: ExtractNoChoices}
	}
	images := resp.Choices[0].Message.Images
	if len(images) == 0 {
		return nil, &ExtractError{Kind: ExtractNoImages}
	}

	url := images[0].ImageURL.URL
	if !strings.HasPrefix(url, "data:image") {
		return nil, &ExtractError{Kind: ExtractNotDataURI}
	}
	_, payload, ok := strings.Cut(url, ",")
	if !ok {
		return nil, &ExtractError{Kind: ExtractMalformedDataURI}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &ExtractError{Kind: ExtractDecodeFailed, Cause: err}
	}
	return data, nil
}
