package models

import "time"

const (
	TaskTypeFollowUp   = "follow_up"
	TaskTypeNewMessage = "new_message"
)

// Task is a notification waiting in the dispatch queue.
type Task struct {
	RequestID string
	Type      string
	Subject   string
	Body      string
	LeadID    string
	DealID    string
	Timestamp time.Time
	Silenced  bool
}
