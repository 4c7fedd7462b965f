// Package media holds the item types shared by the tracking engine.
// Catalog metadata is owned elsewhere; the engine only reads identity,
// duration and the per-user progress fields.
package media

import (
	"fmt"
	"strings"
)

type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// ParseKind maps a wire value onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindVideo:
		return KindVideo, nil
	case KindAudio:
		return KindAudio, nil
	default:
		return "", fmt.Errorf("unknown media kind %q", s)
	}
}

// Item is one playable entry: a video or a podcast-style audio episode.
type Item struct {
	Kind            Kind   `json:"kind"`
	ID              string `json:"id"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Key identifies an item across kinds; two items with the same ID but
// different kinds are distinct queue entries.
func (i Item) Key() string {
	return string(i.Kind) + ":" + i.ID
}

// Validate checks the fields the engine depends on.
func (i Item) Validate() error {
	switch i.Kind {
	case KindVideo, KindAudio:
	default:
		return fmt.Errorf("unknown media kind %q", i.Kind)
	}
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("media id is required")
	}
	if i.DurationSeconds <= 0 {
		return fmt.Errorf("duration_seconds must be positive, got %d", i.DurationSeconds)
	}
	return nil
}
