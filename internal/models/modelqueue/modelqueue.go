// Package modelqueue provides types for queueing pieces of data.
package modelqueue

import "time"

// PayoutQueueEntry is a processing withdrawal scheduled for a provider-side
// status poll.
type PayoutQueueEntry struct {
	WithdrawalID string
	ExternalID   string
	RetryCount   int
	LastChecked  time.Time
}
