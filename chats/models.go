package chats

// Chat is one conversation as listed by GET /chats.
type Chat struct {
	ID          int64        `json:"id"`
	Type        string       `json:"type,omitempty"`
	Name        string       `json:"name,omitempty"`
	AvatarURL   string       `json:"avatar_url,omitempty"`
	OtherUser   *OtherUser   `json:"other_user,omitempty"`
	LastMessage *LastMessage `json:"last_message,omitempty"`
	UnreadCount int          `json:"unread_count,omitempty"`
	IsInInbox   *bool        `json:"is_in_inbox,omitempty"`
	InboxReason string       `json:"inbox_reason,omitempty"`
}

// InInbox reports whether the chat sits in the inbox rather than the archive.
// The server omits the flag for some chat types; absent means archived.
func (c Chat) InInbox() bool {
	return c.IsInInbox != nil && *c.IsInInbox
}

// OtherUser is the counterpart in a direct chat.
type OtherUser struct {
	ID        int64  `json:"id"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// LastMessage is the preview of the most recent message in a chat listing.
type LastMessage struct {
	ID             int64  `json:"id,omitempty"`
	SenderID       int64  `json:"sender_id,omitempty"`
	Content        string `json:"content,omitempty"`
	VideoID        int64  `json:"video_id,omitempty"`
	NomenclatureID string `json:"nomenclature_id,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	IsRead         bool   `json:"is_read,omitempty"`
}

// Message is a full message record from GET /chats/{id}/messages and from
// live chat-event frames.
type Message struct {
	ID             int64  `json:"id"`
	SenderID       int64  `json:"sender_id,omitempty"`
	Content        string `json:"content,omitempty"`
	VideoID        int64  `json:"video_id,omitempty"`
	NomenclatureID string `json:"nomenclature_id,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	IsRead         bool   `json:"is_read,omitempty"`
}

// Page is the envelope returned by GET /chats.
type Page struct {
	Count int    `json:"count,omitempty"`
	Chats []Chat `json:"chats,omitempty"`
}

// SendRequest addresses a message either by recipient id or by username;
// exactly one of the two should be set.
type SendRequest struct {
	RecipientID int64  `json:"recipient_id,omitempty"`
	Username    string `json:"username,omitempty"`
	Content     string `json:"content"`
}

// SendReceipt acknowledges an accepted message.
type SendReceipt struct {
	MessageID int64  `json:"message_id"`
	Status    string `json:"status"`
}
