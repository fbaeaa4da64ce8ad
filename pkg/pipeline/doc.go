// Package pipeline is the output side of the crawler: it receives derived
// proposals from the walker, downloads their documents to disk and upserts
// them into MongoDB keyed on content ID.
//
// Downloads are best-effort. A proposal whose document cannot be fetched is
// still persisted, with the failure recorded, so the next crawl retries it.
package pipeline
