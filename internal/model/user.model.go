package model

type User struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	APIKey      string `json:"-"`
	ProjectID   int64  `json:"project_id"`
}

// Session is the authenticated identity attached to a request. Handlers
// stamp project and user onto created records from here, never from the
// request body.
type Session struct {
	UserID    int64
	ProjectID int64
}

func (u *User) Session() *Session {
	return &Session{UserID: u.ID, ProjectID: u.ProjectID}
}
