package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Item-specific validation errors
var (
	// ErrItemIDEmpty is returned when an item ID is empty.
	ErrItemIDEmpty = errors.New("item ID cannot be empty")

	// ErrItemSourceURLEmpty is returned when an item's source URL is empty.
	ErrItemSourceURLEmpty = errors.New("item source URL cannot be empty")

	// ErrItemCategoryInvalid is returned when an item's category is not one
	// of the known categories.
	ErrItemCategoryInvalid = errors.New("item category must be article, video or podcast")

	// ErrItemStatusInvalid is returned when an item's status is not one of
	// the known statuses.
	ErrItemStatusInvalid = errors.New("item status is not a known status")
)

// ItemStatus represents where an item is in its processing lifecycle.
type ItemStatus string

// Possible item status values.
const (
	ItemStatusNew               ItemStatus = "new"
	ItemStatusProcessing        ItemStatus = "processing"
	ItemStatusRetryScheduled    ItemStatus = "retry_scheduled"
	ItemStatusPermanentlyFailed ItemStatus = "permanently_failed"
	ItemStatusDone              ItemStatus = "done"
)

// ItemCategory identifies the kind of content an item points at.
type ItemCategory string

// Known item categories.
const (
	CategoryArticle ItemCategory = "article"
	CategoryVideo   ItemCategory = "video"
	CategoryPodcast ItemCategory = "podcast"
)

// FailureReason distinguishes the two paths into ItemStatusPermanentlyFailed:
// the adapter output matched a permanent-failure pattern on some attempt, or
// the item ran out of retry slots. Both end in the same terminal status but
// they mean different things to an operator, so the reason is persisted.
type FailureReason string

const (
	// FailurePermanentContent marks items whose content can never be
	// extracted (paywall, deleted source).
	FailurePermanentContent FailureReason = "permanent_content"

	// FailureRetriesExhausted marks items that kept failing transiently
	// until the backoff table ran out.
	FailureRetriesExhausted FailureReason = "retries_exhausted"
)

// Item is one piece of content tracked through the pipeline. Its ID is
// derived from the source URL, which makes the items table the dedup
// authority: the same URL always maps to the same row.
type Item struct {
	ID             string
	SourceURL      string
	Title          string
	Category       ItemCategory
	Status         ItemStatus
	FirstSeenAt    time.Time
	LastAttemptAt  *time.Time
	AttemptCount   int
	NextRetryAt    *time.Time
	LastError      string
	FailureReason  FailureReason
	ResultLocation string
}

// ItemID derives the stable identity for a source URL.
func ItemID(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}

// NewItem creates a new Item in the New status with its ID derived from the
// source URL. Returns an error if validation fails.
func NewItem(sourceURL, title string, category ItemCategory) (*Item, error) {
	item := &Item{
		ID:          ItemID(sourceURL),
		SourceURL:   sourceURL,
		Title:       title,
		Category:    category,
		Status:      ItemStatusNew,
		FirstSeenAt: time.Now().UTC(),
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the Item has valid data.
func (i *Item) Validate() error {
	if i.ID == "" {
		return ErrItemIDEmpty
	}

	if i.SourceURL == "" {
		return ErrItemSourceURLEmpty
	}

	switch i.Category {
	case CategoryArticle, CategoryVideo, CategoryPodcast:
	default:
		return ErrItemCategoryInvalid
	}

	switch i.Status {
	case ItemStatusNew, ItemStatusProcessing, ItemStatusRetryScheduled,
		ItemStatusPermanentlyFailed, ItemStatusDone:
	default:
		return ErrItemStatusInvalid
	}

	return nil
}

// IsTerminal reports whether the item has reached a terminal status. Terminal
// items are never re-selected for processing.
func (i *Item) IsTerminal() bool {
	return i.Status == ItemStatusDone || i.Status == ItemStatusPermanentlyFailed
}

// Eligible reports whether the item may transition to Processing.
func (i *Item) Eligible() bool {
	return i.Status == ItemStatusNew || i.Status == ItemStatusRetryScheduled
}
