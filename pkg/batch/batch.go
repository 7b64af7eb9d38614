package batch

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tilemark/pkg/export"
	"tilemark/pkg/watermark"
)

// Options controls decoding and output for every item of a batch.
type Options struct {
	ApplyExifRotation bool
	Format            export.Format
	Quality           int
	Template          string
	PreviewSize       int
}

// DefaultOptions returns PNG output named with export.DefaultBatchTemplate.
func DefaultOptions() Options {
	return Options{
		ApplyExifRotation: true,
		Format:            export.PNG,
		Quality:           export.DefaultQuality,
		Template:          export.DefaultBatchTemplate,
		PreviewSize:       200,
	}
}

// Batch is an ordered, concurrency-safe list of items processed as a unit.
type Batch struct {
	mu       sync.Mutex
	items    []Item
	renderer *watermark.Renderer
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time
}

// New returns an empty batch rendering with renderer.
func New(renderer *watermark.Renderer, opts Options, logger zerolog.Logger) *Batch {
	if opts.Template == "" {
		opts.Template = export.DefaultBatchTemplate
	}
	if opts.Format == "" {
		opts.Format = export.PNG
	}
	return &Batch{
		renderer: renderer,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Add appends a pending item holding the raw file bytes.
func (b *Batch) Add(filename string, data []byte) Item {
	item := Item{
		ID:       uuid.NewString(),
		Filename: filename,
		Data:     data,
		State:    StatePending,
	}
	b.mu.Lock()
	b.items = append(b.items, item)
	b.mu.Unlock()
	return item
}

// Items returns the current items in insertion order.
func (b *Batch) Items() []Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.items)
}

// Get returns the current snapshot of the item with the given ID.
func (b *Batch) Get(id string) (Item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 {
		return Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	return b.items[i], nil
}

// Remove drops an item together with its preview and buffers.
func (b *Batch) Remove(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	b.items[i] = Item{}
	b.items = slices.Delete(b.items, i, i+1)
	return nil
}

// Reset returns an item to pending so the next Process run handles it again.
func (b *Batch) Reset(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	item := b.items[i]
	item.Output = nil
	item.OutputName = ""
	item.Preview = nil
	item.Err = nil
	item.State = StatePending
	b.items[i] = item
	return nil
}

// Clear removes every item.
func (b *Batch) Clear() {
	b.mu.Lock()
	clear(b.items)
	b.items = nil
	b.mu.Unlock()
}

// Counts tallies the items by state.
func (b *Batch) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := Counts{Total: len(b.items)}
	for _, it := range b.items {
		switch it.State {
		case StatePending:
			c.Pending++
		case StateProcessing:
			c.Processing++
		case StateCompleted:
			c.Completed++
		case StateError:
			c.Error++
		}
	}
	return c
}

// Process runs every pending item through decode, render and encode, one at
// a time. A failing item is marked as error and the run moves on. Items that
// are already completed or failed are skipped. Cancelling ctx stops the run
// before the next item starts.
func (b *Batch) Process(ctx context.Context, spec watermark.Spec) error {
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("invalid watermark: %w", err)
	}

	start := time.Now()
	var processed int
	for _, id := range b.pending() {
		if err := ctx.Err(); err != nil {
			b.logger.Warn().Err(err).Int("processed", processed).Msg("Batch cancelled")
			return err
		}

		item, position, ok := b.transition(id, StateProcessing)
		if !ok {
			continue
		}
		processed++

		result, err := b.processItem(item, position, spec)
		if err != nil {
			result.State = StateError
			result.Err = err
			b.logger.Error().
				Err(err).
				Str("id", item.ID).
				Str("filename", item.Filename).
				Msg("Failed to process image")
		} else {
			result.State = StateCompleted
			b.logger.Debug().
				Str("id", item.ID).
				Str("filename", item.Filename).
				Str("output", result.OutputName).
				Str("size", humanize.Bytes(uint64(len(result.Output)))).
				Msg("Image processed")
		}
		b.store(result)
	}

	c := b.Counts()
	b.logger.Info().
		Int("processed", processed).
		Int("completed", c.Completed).
		Int("failed", c.Error).
		Dur("duration", time.Since(start)).
		Msg("Batch finished")
	return nil
}

func (b *Batch) processItem(item Item, position int, spec watermark.Spec) (Item, error) {
	if item.Image == nil {
		img, err := watermark.Decode(item.Data, b.opts.ApplyExifRotation)
		if err != nil {
			return item, err
		}
		item.Image = img
	}

	surface, err := b.renderer.Render(item.Image, spec)
	if err != nil {
		return item, err
	}
	if b.opts.PreviewSize > 0 {
		item.Preview = watermark.Preview(surface, b.opts.PreviewSize)
	}
	out, err := export.Encode(surface, b.opts.Format, b.opts.Quality)
	if err != nil {
		return item, err
	}
	item.Output = out
	item.OutputName = export.Filename(item.Filename, b.opts.Template, position, b.now(), b.opts.Format)
	return item, nil
}

// Entries returns the outputs of completed items in batch order.
func (b *Batch) Entries() []export.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	var entries []export.Entry
	for _, it := range b.items {
		if it.State == StateCompleted {
			entries = append(entries, export.Entry{Filename: it.OutputName, Data: it.Output})
		}
	}
	return entries
}

// Archive zips the completed outputs. It fails with export.ErrEmptyArchive
// when nothing has completed.
func (b *Batch) Archive() ([]byte, error) {
	return export.Archive(b.Entries())
}

func (b *Batch) pending() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []string
	for _, it := range b.items {
		if it.State == StatePending {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

// transition moves a pending item to state and returns the new snapshot and
// its position. Items removed or reset meanwhile are reported as not ok.
func (b *Batch) transition(id string, state State) (Item, int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 || b.items[i].State != StatePending {
		return Item{}, 0, false
	}
	item := b.items[i]
	item.State = state
	b.items[i] = item
	return item, i, true
}

// store replaces the item with the same ID. Results for items removed while
// processing are discarded.
func (b *Batch) store(item Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := b.index(item.ID); i >= 0 {
		b.items[i] = item
	}
}

func (b *Batch) index(id string) int {
	return slices.IndexFunc(b.items, func(it Item) bool { return it.ID == id })
}
