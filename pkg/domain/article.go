package domain

import "time"

// Article is a normalized news record ready for feed publication.
// Title is always set; other fields carry fallback values when extraction missed them.
type Article struct {
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Content       string    `json:"content"`
	PublishedDate time.Time `json:"published_date"`
	Source        string    `json:"source"`
	Author        string    `json:"author,omitempty"`
	SiteKey       string    `json:"site,omitempty"`
	DateEstimated bool      `json:"date_estimated,omitempty"`
}

// Link is a candidate article URL found on a listing page
type Link struct {
	URL     string
	SiteKey string
}
