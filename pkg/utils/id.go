package utils

import "github.com/google/uuid"

// GenID returns a new opaque message id.
func GenID() string {
	return "msg_" + uuid.NewString()
}

// GenThreadID returns a new opaque thread id.
func GenThreadID() string {
	return "th_" + uuid.NewString()
}
