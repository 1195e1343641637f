package domain

import "time"

// DirectMessage is one line of a private conversation between two users.
// Image holds a hosted URL; the service never stores uploads itself.
type DirectMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Involves reports whether userID is one of the two parties.
func (m DirectMessage) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Peer returns the other party relative to userID.
func (m DirectMessage) Peer(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
