// Package recognition implements the peer side of the evaluation protocol:
// turning an image blob into recognized text.
package recognition

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

// ErrUnrecognized is returned when a recognizer has no answer for an image.
var ErrUnrecognized = errors.New("image not recognized")

// Recognizer extracts text from an image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// StaticRecognizer answers every image with the same text.
type StaticRecognizer struct {
	Text string
}

// Recognize implements Recognizer.
func (s StaticRecognizer) Recognize(ctx context.Context, _ []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.Text, nil
}

// DigestRecognizer labels images by the SHA-256 of their bytes. It stands in
// for an OCR engine when the peer knows the image set in advance.
type DigestRecognizer struct {
	mu       sync.RWMutex
	labels   map[string]string
	fallback string
}

// NewDigestRecognizer creates an empty recognizer. Unknown images get
// fallback, or ErrUnrecognized when fallback is empty.
func NewDigestRecognizer(fallback string) *DigestRecognizer {
	return &DigestRecognizer{labels: make(map[string]string), fallback: fallback}
}

// Learn associates image with text.
func (d *DigestRecognizer) Learn(image []byte, text string) {
	key := Digest(image)
	d.mu.Lock()
	d.labels[key] = text
	d.mu.Unlock()
}

// LearnDigest associates a precomputed hex SHA-256 digest with text.
func (d *DigestRecognizer) LearnDigest(digest, text string) error {
	raw, err := hex.DecodeString(digest)
	if err != nil || len(raw) != sha256.Size {
		return fmt.Errorf("invalid image digest %q", digest)
	}
	d.mu.Lock()
	d.labels[hex.EncodeToString(raw)] = text
	d.mu.Unlock()
	return nil
}

// Recognize implements Recognizer.
func (d *DigestRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.mu.RLock()
	text, ok := d.labels[Digest(image)]
	d.mu.RUnlock()
	if ok {
		return text, nil
	}
	if d.fallback != "" {
		return d.fallback, nil
	}
	return "", fmt.Errorf("%w: %d bytes", ErrUnrecognized, len(image))
}

// Digest returns the hex SHA-256 of image.
func Digest(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}
