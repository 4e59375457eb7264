package users

import (
	"context"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// PageRequest selects a zero based page of results.
type PageRequest struct {
	Page int
	Size int
}

// Normalize applies the default size and clamps out of range values.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset is the index of the first element of the page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is a window of results that also reports the total count.
type Page[T any] struct {
	Content       []T `json:"content"`
	Number        int `json:"number"`
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
}

// Slice is a window of results that only knows whether more follow.
type Slice[T any] struct {
	Content []T  `json:"content"`
	Number  int  `json:"number"`
	Size    int  `json:"size"`
	HasNext bool `json:"hasNext"`
}

// NewPage builds a page from its content and the total number of matches.
func NewPage[T any](content []T, req PageRequest, total int) Page[T] {
	pages := 0
	if req.Size > 0 {
		pages = (total + req.Size - 1) / req.Size
	}
	if content == nil {
		content = []T{}
	}
	return Page[T]{
		Content:       content,
		Number:        req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}

// NewSlice builds a slice from up to req.Size+1 fetched rows. The extra row
// only signals that another slice exists and is dropped.
func NewSlice[T any](fetched []T, req PageRequest) Slice[T] {
	hasNext := len(fetched) > req.Size
	if hasNext {
		fetched = fetched[:req.Size]
	}
	if fetched == nil {
		fetched = []T{}
	}
	return Slice[T]{
		Content: fetched,
		Number:  req.Page,
		Size:    req.Size,
		HasNext: hasNext,
	}
}

// UserRepo is the user store. Every query is an explicit method; substring
// matches are case-insensitive and results are ordered by login name.
type UserRepo interface {
	Upsert(ctx context.Context, user *User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*User, error)
	FindByLoginNameExact(ctx context.Context, loginName string) (*User, error)
	FindByLoginNameContains(ctx context.Context, fragment string, req PageRequest) (Slice[*User], error)
	FindByDisplayNameContains(ctx context.Context, fragment string, req PageRequest) (Page[*User], error)
	List(ctx context.Context, req PageRequest) (Page[*User], error)
	SetLastLogin(ctx context.Context, id string, at time.Time) error
}
