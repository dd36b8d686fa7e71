package models

type Thread struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	// Owner is the identity the thread is namespaced under (wallet
	// address or the anonymous default); clients manage meaning.
	Owner string `json:"owner"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	// Updated timestamp (ns) - last time messages or metadata changed
	UpdatedTS int64 `json:"updated_ts,omitempty"`
	// Deleted marks a thread as soft-deleted; DeletedTS records deletion
	// time (ns). Purging tombstones is the retention runner's job.
	Deleted   bool  `json:"deleted,omitempty"`
	DeletedTS int64 `json:"deleted_ts,omitempty"`

	// Messages is the ordered, append-only message sequence. The chat
	// store is the sole writer.
	Messages []Message `json:"messages"`
}
