// Package chats covers the chat and message surface of the taskbot API. Every
// call goes through the authenticated api.Client, so a stale access token is
// refreshed transparently.
package chats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/taskbotapp/taskbot-go/api"
)

// Service issues chat and message calls.
type Service struct {
	api *api.Client
}

// NewService creates a chat service on top of client.
func NewService(client *api.Client) *Service {
	return &Service{api: client}
}

// List returns the chats currently in the inbox.
func (s *Service) List(ctx context.Context, offset, limit int) ([]Chat, error) {
	page, err := s.page(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	inbox := make([]Chat, 0, len(page.Chats))
	for _, chat := range page.Chats {
		if chat.InInbox() {
			inbox = append(inbox, chat)
		}
	}
	return inbox, nil
}

// ListArchived returns the chats that are not in the inbox.
func (s *Service) ListArchived(ctx context.Context, offset, limit int) ([]Chat, error) {
	page, err := s.page(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	archived := make([]Chat, 0, len(page.Chats))
	for _, chat := range page.Chats {
		if !chat.InInbox() {
			archived = append(archived, chat)
		}
	}
	return archived, nil
}

func (s *Service) page(ctx context.Context, offset, limit int) (Page, error) {
	var page Page
	err := s.api.Do(ctx, api.Request{
		Endpoint:     fmt.Sprintf("/chats?offset=%d&limit=%d", offset, limit),
		RequiresAuth: true,
	}, &page)
	return page, err
}

// Archive moves a chat out of the inbox.
func (s *Service) Archive(ctx context.Context, chatID int64) error {
	return s.api.Do(ctx, api.Request{
		Endpoint:     fmt.Sprintf("/chats/%d/archive", chatID),
		Method:       http.MethodPut,
		RequiresAuth: true,
	}, nil)
}

// Unarchive moves a chat back into the inbox.
func (s *Service) Unarchive(ctx context.Context, chatID int64) error {
	return s.api.Do(ctx, api.Request{
		Endpoint:     fmt.Sprintf("/chats/%d/inbox", chatID),
		Method:       http.MethodPut,
		RequiresAuth: true,
	}, nil)
}

// MarkRead clears the unread counter on a chat.
func (s *Service) MarkRead(ctx context.Context, chatID int64) error {
	return s.api.Do(ctx, api.Request{
		Endpoint:     fmt.Sprintf("/chats/%d/read", chatID),
		Method:       http.MethodPost,
		RequiresAuth: true,
	}, nil)
}

// Delete removes a chat.
func (s *Service) Delete(ctx context.Context, chatID int64) error {
	return s.api.Do(ctx, api.Request{
		Endpoint:     fmt.Sprintf("/chats/%d", chatID),
		Method:       http.MethodDelete,
		RequiresAuth: true,
	}, nil)
}

// Messages lists a chat's messages. The server answers with either a bare
// array or a {messages|items} envelope depending on the chat type; both are
// accepted.
func (s *Service) Messages(ctx context.Context, chatID int64) ([]Message, error) {
	var raw json.RawMessage
	err := s.api.Do(ctx, api.Request{
		Endpoint:     fmt.Sprintf("/chats/%d/messages", chatID),
		RequiresAuth: true,
	}, &raw)
	if err != nil {
		return nil, err
	}

	var messages []Message
	if err := json.Unmarshal(raw, &messages); err == nil {
		return messages, nil
	}
	var envelope struct {
		Messages []Message `json:"messages"`
		Items    []Message `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &api.DecodeError{Err: err}
	}
	if envelope.Messages != nil {
		return envelope.Messages, nil
	}
	return envelope.Items, nil
}

// Send delivers content to a recipient by user id.
func (s *Service) Send(ctx context.Context, recipientID int64, content string) (SendReceipt, error) {
	return s.send(ctx, SendRequest{RecipientID: recipientID, Content: content})
}

// SendToUsername delivers content to a recipient by username.
func (s *Service) SendToUsername(ctx context.Context, username, content string) (SendReceipt, error) {
	return s.send(ctx, SendRequest{Username: username, Content: content})
}

func (s *Service) send(ctx context.Context, req SendRequest) (SendReceipt, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SendReceipt{}, err
	}
	var receipt SendReceipt
	err = s.api.Do(ctx, api.Request{
		Endpoint:     "/chats/messages",
		Method:       http.MethodPost,
		Body:         body,
		RequiresAuth: true,
	}, &receipt)
	return receipt, err
}
