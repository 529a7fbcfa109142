package model

import (
	"errors"
	"strings"
)

// ErrEmptyTitle is returned when a title is blank after trimming.
var ErrEmptyTitle = errors.New("title cannot be empty")

// Item is the domain model for a todo entry, as the remote service returns it.
// ID and both timestamps are assigned by the server; the client never sets them.
type Item struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

// DescriptionText returns the description or "" when absent.
func (it Item) DescriptionText() string {
	if it.Description == nil {
		return ""
	}
	return *it.Description
}

// CreateRequest is the body of POST /todos.
type CreateRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}

// Normalize trims the title and description. A blank description is dropped.
func (r CreateRequest) Normalize() CreateRequest {
	out := CreateRequest{Title: strings.TrimSpace(r.Title)}
	if r.Description != nil {
		if d := strings.TrimSpace(*r.Description); d != "" {
			out.Description = &d
		}
	}
	return out
}

func (r CreateRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// UpdateRequest is the body of PATCH /todos/{id}.
// Nil fields are left out of the payload and therefore left unchanged.
type UpdateRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// Empty reports whether no field is set.
func (r UpdateRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Completed == nil
}

// Normalize trims a supplied title. Other fields pass through untouched.
func (r UpdateRequest) Normalize() UpdateRequest {
	if r.Title != nil {
		t := strings.TrimSpace(*r.Title)
		r.Title = &t
	}
	return r
}

// Validate rejects a title that is present but blank.
func (r UpdateRequest) Validate() error {
	if r.Title != nil && strings.TrimSpace(*r.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// Toggle builds the update that flips an item's completion flag.
func Toggle(it Item) UpdateRequest {
	done := !it.Completed
	return UpdateRequest{Completed: &done}
}

// Rename builds a title-only update.
func Rename(title string) UpdateRequest {
	return UpdateRequest{Title: &title}
}

// Stats is derived from a list of items; it is never stored.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Remaining int `json:"remaining"`
}

func ComputeStats(items []Item) Stats {
	s := Stats{Total: len(items)}
	for _, it := range items {
		if it.Completed {
			s.Completed++
		} else {
			s.Remaining++
		}
	}
	return s
}
