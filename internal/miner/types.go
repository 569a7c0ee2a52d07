// Package miner defines the core types shared across the email-mining subsystems.
package miner

import (
	"fmt"
	"strings"
)

// MiningStatus is the persisted lifecycle state of a work item.
type MiningStatus string

// Mining status values persisted in the item store. A failed status carries
// its reason, see FailedStatus.
const (
	StatusPending MiningStatus = ""
	StatusDone    MiningStatus = "done"
)

const failedMarker = "failed"

// FailedStatus builds the "failed: <reason>" status recorded for an item.
func FailedStatus(reason string) MiningStatus {
	return MiningStatus(fmt.Sprintf("%s: %s", failedMarker, reason))
}

// IsFailed reports whether the status matches the failed pattern.
func (s MiningStatus) IsFailed() bool {
	return strings.Contains(strings.ToLower(string(s)), failedMarker)
}

// IsPending reports whether no mining attempt has been recorded.
func (s MiningStatus) IsPending() bool {
	return s == StatusPending
}

// Item is a work item owned by the item store. The miner only reads pending
// items and writes back Email and MiningStatus.
type Item struct {
	ID           string       `json:"id"`
	Website      string       `json:"website"`
	Email        []string     `json:"email,omitempty"`
	MiningStatus MiningStatus `json:"mining_status,omitempty"`
}

// IsPending reports whether the item should be picked up by the next batch:
// it has a website, no email yet, and no recorded attempt.
func (i Item) IsPending() bool {
	return strings.TrimSpace(i.Website) != "" && len(i.Email) == 0 && i.MiningStatus.IsPending()
}

// Link is an anchor element found on a rendered page.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Result is the outcome of mining a single item. Exactly one of Emails
// (possibly empty) or Err is meaningful.
type Result struct {
	Item   Item
	Emails []string
	Err    error
}

// Succeeded reports whether the crawl completed without error.
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// Apply returns the item with the outcome written into Email and MiningStatus.
func (r Result) Apply() Item {
	item := r.Item
	if r.Err != nil {
		item.MiningStatus = FailedStatus(r.Err.Error())
		return item
	}
	emails := r.Emails
	if emails == nil {
		emails = []string{}
	}
	item.Email = emails
	item.MiningStatus = StatusDone
	return item
}

// Stats summarizes the store for progress logging.
type Stats struct {
	WithWebsite int64 `json:"with_website"`
	Done        int64 `json:"done"`
	Failed      int64 `json:"failed"`
	Pending     int64 `json:"pending"`
}
