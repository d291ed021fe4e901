// Package models defines the core data types shared across the decision pipeline.
package models

import "time"

// MarketSnapshot is one recorded bar of market data for a symbol.
// Snapshots are immutable once recorded.
type MarketSnapshot struct {
	Symbol    string    `json:"symbol"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	PrevClose float64   `json:"prev_close"`
	Volume    int64     `json:"volume"`
	Turnover  float64   `json:"turnover"`
	Timestamp time.Time `json:"timestamp"`
}

// IsLimitUp reports whether the bar closed at or above the daily up limit.
// A-share main board limit is 10% over the previous close.
func (s MarketSnapshot) IsLimitUp() bool {
	return s.PrevClose > 0 && s.Close >= s.PrevClose*1.0995
}

// IsLimitDown reports whether the bar closed at or below the daily down limit.
func (s MarketSnapshot) IsLimitDown() bool {
	return s.PrevClose > 0 && s.Close <= s.PrevClose*0.9005
}

// NewsItem is a free-text document attached to a symbol.
type NewsItem struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	Content     string    `json:"content"`
	PublishedAt time.Time `json:"published_at"`
}

// SymbolMeta carries descriptive metadata about an instrument.
type SymbolMeta struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Halted   bool   `json:"halted"`
}
