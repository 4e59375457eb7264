package server

import (
	"math"
	"net/http"
	"strconv"

	"github.com/jrsteele09/go-login-server/internal/errors"
	"github.com/jrsteele09/go-login-server/users"
)

// userCollection is the HAL-style envelope of a user listing
type userCollection struct {
	Embedded struct {
		Users []*users.User `json:"user"`
	} `json:"_embedded"`
	Page pageMetadata `json:"page"`
}

type pageMetadata struct {
	Size          int   `json:"size"`
	Number        int   `json:"number"`
	TotalElements *int  `json:"totalElements,omitempty"`
	TotalPages    *int  `json:"totalPages,omitempty"`
	HasNext       *bool `json:"hasNext,omitempty"`
}

func pageCollection(page users.Page[*users.User]) userCollection {
	var c userCollection
	c.Embedded.Users = nonNil(page.Content)
	c.Page = pageMetadata{
		Size:          page.Size,
		Number:        page.Number,
		TotalElements: &page.TotalElements,
		TotalPages:    &page.TotalPages,
	}
	return c
}

func sliceCollection(slice users.Slice[*users.User]) userCollection {
	var c userCollection
	c.Embedded.Users = nonNil(slice.Content)
	c.Page = pageMetadata{
		Size:    slice.Size,
		Number:  slice.Number,
		HasNext: &slice.HasNext,
	}
	return c
}

func nonNil(list []*users.User) []*users.User {
	if list == nil {
		return []*users.User{}
	}
	return list
}

// maxPage keeps Page*Size within int for any accepted size
const maxPage = math.MaxInt / users.MaxPageSize

// pageRequest reads the page and size parameters. Missing values take the
// defaults; malformed or out-of-range values are rejected.
func pageRequest(r *http.Request) (users.PageRequest, error) {
	var req users.PageRequest
	for param, dst := range map[string]*int{ParamPage: &req.Page, ParamSize: &req.Size} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return users.PageRequest{}, errors.ErrInvalidPageSize
		}
		*dst = n
	}
	if req.Size > users.MaxPageSize || req.Page > maxPage {
		return users.PageRequest{}, errors.ErrInvalidPageSize
	}
	return req.Normalize(), nil
}

func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := pageRequest(r)
		if err != nil {
			writeJSONError(w, "invalid_page", http.StatusBadRequest)
			return
		}
		page, err := s.repos.Users.List(r.Context(), req)
		if err != nil {
			s.writeDenial(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageCollection(page))
	}
}

func (s *Server) FindUserByLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.repos.Users.FindByLoginNameExact(r.Context(), r.URL.Query().Get(ParamLoginName))
		if errors.Is(err, errors.ErrUserNotFound) {
			writeJSONError(w, "not_found", http.StatusNotFound)
			return
		}
		if err != nil {
			s.writeDenial(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func (s *Server) FindUsersByLoginContainsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := pageRequest(r)
		if err != nil {
			writeJSONError(w, "invalid_page", http.StatusBadRequest)
			return
		}
		slice, err := s.repos.Users.FindByLoginNameContains(r.Context(), r.URL.Query().Get(ParamLoginName), req)
		if err != nil {
			s.writeDenial(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sliceCollection(slice))
	}
}

func (s *Server) FindUsersByNameContainsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := pageRequest(r)
		if err != nil {
			writeJSONError(w, "invalid_page", http.StatusBadRequest)
			return
		}
		page, err := s.repos.Users.FindByDisplayNameContains(r.Context(), r.URL.Query().Get(ParamName), req)
		if err != nil {
			s.writeDenial(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, pageCollection(page))
	}
}
