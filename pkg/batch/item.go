// Package batch watermarks a list of images one after another and collects
// the results for archiving.
package batch

import (
	"errors"
	"image"

	"tilemark/pkg/watermark"
)

// ErrItemNotFound is returned for IDs that are not in the batch.
var ErrItemNotFound = errors.New("item not found")

// State is the lifecycle position of an item.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Terminal reports whether s is completed or error.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// Item is a snapshot of one batch entry. Items are never modified in place;
// every state change stores a new value under the same ID.
type Item struct {
	ID         string
	Filename   string
	Data       []byte
	Image      *watermark.OrientedImage
	Preview    image.Image
	Output     []byte
	OutputName string
	State      State
	Err        error
}

// Counts summarises a batch by state.
type Counts struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Error      int
}
