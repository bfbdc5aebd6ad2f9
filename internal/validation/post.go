package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxPostTextLength    = 5000
	MaxCommentTextLength = 1000
	MaxImageRefLength    = 2048
	MaxModeratorNoteLen  = 500
	// MaxDataURILength bounds inline images carried as data: URIs.
	MaxDataURILength = 2 << 20
)

// ValidatePostText expects already trimmed text.
func ValidatePostText(text string) error {
	if text == "" {
		return fmt.Errorf("post text must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxPostTextLength {
		return fmt.Errorf("post text must not exceed %d characters", MaxPostTextLength)
	}
	return nil
}

// ValidateCommentText expects already trimmed text.
func ValidateCommentText(text string) error {
	if text == "" {
		return fmt.Errorf("comment must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxCommentTextLength {
		return fmt.Errorf("comment must not exceed %d characters", MaxCommentTextLength)
	}
	return nil
}

// ValidateModeratorNote bounds the rejection reason shown to the author.
func ValidateModeratorNote(note string) error {
	if utf8.RuneCountInString(note) > MaxModeratorNoteLen {
		return fmt.Errorf("moderator note must not exceed %d characters", MaxModeratorNoteLen)
	}
	return nil
}

// ValidateImageRef checks one image reference: a data:image URI, an http(s) URL or a path
// served by this API.
func ValidateImageRef(ref string) error {
	switch {
	case strings.TrimSpace(ref) == "":
		return fmt.Errorf("image reference must not be empty")
	case strings.HasPrefix(ref, "data:"):
		if !strings.HasPrefix(ref, "data:image/") {
			return fmt.Errorf("data URI must contain an image")
		}
		if len(ref) > MaxDataURILength {
			return fmt.Errorf("inline image is too large")
		}
		return nil
	case len(ref) > MaxImageRefLength:
		return fmt.Errorf("image reference must not exceed %d bytes", MaxImageRefLength)
	case strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "/api/images/"):
		return nil
	default:
		return fmt.Errorf("unsupported image reference")
	}
}

// ValidateImages checks the image list of a post.
func ValidateImages(refs []string, max int) error {
	if len(refs) > max {
		return fmt.Errorf("a post may have at most %d images", max)
	}
	for i, ref := range refs {
		if err := ValidateImageRef(ref); err != nil {
			return fmt.Errorf("image %d: %w", i+1, err)
		}
	}
	return nil
}
