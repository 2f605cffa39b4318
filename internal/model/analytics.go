package model

import "time"

// UTM is the standard five-field campaign attribution set.
type UTM struct {
	Source   string `json:"utm_source,omitempty"`
	Medium   string `json:"utm_medium,omitempty"`
	Campaign string `json:"utm_campaign,omitempty"`
	Term     string `json:"utm_term,omitempty"`
	Content  string `json:"utm_content,omitempty"`
}

func (u UTM) IsZero() bool {
	return u == UTM{}
}

// PageView is one tracked visit, attributed to a session and campaign.
type PageView struct {
	SessionID string    `json:"sessionId"`
	Path      string    `json:"path"`
	Referrer  string    `json:"referrer,omitempty"`
	UTM       UTM       `json:"utm"`
	Timestamp time.Time `json:"timestamp"`
}
