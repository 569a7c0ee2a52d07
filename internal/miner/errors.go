package miner

import "errors"

var (
	// ErrFetch marks a page that could not be loaded. The crawl engine treats
	// such pages as empty.
	ErrFetch = errors.New("fetch failed")
	// ErrEmptyWebsite is returned when an item has no website to crawl.
	ErrEmptyWebsite = errors.New("empty website")
	// ErrNoProgress is returned when a batch could not persist any result.
	ErrNoProgress = errors.New("batch persisted no results")
)
