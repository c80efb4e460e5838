// Package users covers the user-search surface of the taskbot API.
package users

import (
	"context"
	"net/url"

	"github.com/taskbotapp/taskbot-go/api"
)

// User is one directory entry from GET /users/search.
type User struct {
	ID               int64  `json:"id"`
	Name             string `json:"name,omitempty"`
	TelegramUsername string `json:"telegram_username,omitempty"`
	Avatar           string `json:"avatar,omitempty"`
}

// Profile is the full record from a user profile lookup.
type Profile struct {
	ID               int64  `json:"id"`
	Name             string `json:"name,omitempty"`
	TelegramUsername string `json:"telegram_username,omitempty"`
	Avatar           string `json:"avatar,omitempty"`
	Bio              string `json:"bio,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
}

type searchResponse struct {
	Total  int    `json:"total,omitempty"`
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Count  int    `json:"count,omitempty"`
	Items  []User `json:"items,omitempty"`
}

// Service issues user directory calls.
type Service struct {
	api *api.Client
}

// NewService creates a user service on top of client.
func NewService(client *api.Client) *Service {
	return &Service{api: client}
}

// Search finds users matching query.
func (s *Service) Search(ctx context.Context, query string) ([]User, error) {
	var resp searchResponse
	err := s.api.Do(ctx, api.Request{
		Endpoint:     "/users/search?q=" + url.QueryEscape(query),
		RequiresAuth: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Recommended returns the server's default user suggestions.
func (s *Service) Recommended(ctx context.Context) ([]User, error) {
	var resp searchResponse
	err := s.api.Do(ctx, api.Request{
		Endpoint:     "/users/search",
		RequiresAuth: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}
