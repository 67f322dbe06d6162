package models

import "time"

// EventKind names a dictionary change worth announcing.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventNoted   EventKind = "noted"
	EventRemoved EventKind = "removed"
)

// Event describes a change made by Actor to the entry ID.
type Event struct {
	Kind    EventKind `json:"kind"`
	ID      string    `json:"id"`
	Head    string    `json:"head"`
	Body    string    `json:"body"`
	By      string    `json:"by"`
	Actor   string    `json:"actor"`
	Content string    `json:"content,omitempty"`
	At      time.Time `json:"at"`
}
