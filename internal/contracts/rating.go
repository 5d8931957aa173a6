package contracts

import "time"

// RatingEvent is one analyst rating change as delivered by the feed
// ⭐ SSOT: 피드 응답 항목은 이 구조체로만 디코딩
type RatingEvent struct {
	Ticker     string    `json:"ticker" validate:"required"`
	TargetFrom string    `json:"target_from"` // "$11.00"
	TargetTo   string    `json:"target_to"`
	Company    string    `json:"company" validate:"required"`
	Action     string    `json:"action"`
	Brokerage  string    `json:"brokerage"`
	RatingFrom string    `json:"rating_from"`
	RatingTo   string    `json:"rating_to"`
	Time       time.Time `json:"time"`
}

// Page is one page of the feed. NextPage nil or "" means the last page.
type Page struct {
	Items    []RatingEvent `json:"items"`
	NextPage *string       `json:"next_page"`

	// Items dropped by validation, not part of the wire format
	Dropped int `json:"-"`
}

// Cursor returns the next page token, or "" on the last page
func (p *Page) Cursor() string {
	if p.NextPage == nil {
		return ""
	}
	return *p.NextPage
}

// HasNext reports whether another page follows
func (p *Page) HasNext() bool {
	return p.Cursor() != ""
}
