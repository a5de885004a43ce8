package models

import "time"

// Link is a shortened target stored under a serial. Tag is derived from
// Serial and is never stored.
type Link struct {
	Serial    int64      `json:"serial" db:"serial"`
	Tag       string     `json:"tag" db:"-"`
	Target    string     `json:"target" db:"target"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// Expired reports whether the link has an expiry at or before now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

type ShortenRequest struct {
	URL        string `json:"url"`
	CustomTag  string `json:"custom_tag,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

type ShortenResponse struct {
	Tag      string `json:"tag"`
	ShortURL string `json:"short_url"`
	Target   string `json:"target"`
	Serial   int64  `json:"serial"`
}

// TagInfo describes a tag/serial pair without touching storage.
type TagInfo struct {
	Tag       string `json:"tag"`
	Canonical string `json:"canonical"`
	Serial    int64  `json:"serial"`
}
