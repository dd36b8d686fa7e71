package models

// Event payloads carried over the bus. Each payload type pairs with one
// bus topic; subscribers get the concrete type, not an untyped bag.

type BalanceChanged struct {
	Owner    string  `json:"owner"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
}

// TransactionRecorded is emitted for every applied debit.
type TransactionRecorded struct {
	Owner    string  `json:"owner"`
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
	// Reason is a short tag such as "prompt" or "generation".
	Reason string `json:"reason"`
	TS     int64  `json:"ts"`
}

type ThreadCreated struct {
	Thread Thread `json:"thread"`
}

// MessageAppended is emitted for both user and bot messages; Author on
// the embedded message tells subscribers which.
type MessageAppended struct {
	ThreadID string  `json:"thread_id"`
	Message  Message `json:"message"`
}

// OwnerChanged is emitted when the wallet collaborator connects a new
// address or disconnects (NewOwner is the anonymous default then).
type OwnerChanged struct {
	PrevOwner string `json:"prev_owner"`
	NewOwner  string `json:"new_owner"`
}
