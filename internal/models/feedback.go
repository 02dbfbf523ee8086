package models

import "time"

// FeedbackStatusNew marks feedback nobody has triaged yet.
const FeedbackStatusNew = "new"

// Feedback is a free-form message submitted by any user.
type Feedback struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	UserName  string    `db:"user_name" json:"user_name"`
	Type      string    `db:"type" json:"type"`
	Message   string    `db:"message" json:"message"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
