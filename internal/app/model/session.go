package model

// Session is the authenticated identity plus bearer credential held by the shell.
// It is replaced as a whole; fields are never patched individually.
type Session struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Role        UserRole `json:"role"`
	BearerToken string   `json:"bearer_token,omitempty"`
}

// NewSession combines a profile with the credential that authenticated it.
func NewSession(p Profile, token string) *Session {
	return &Session{
		UserID:      p.ID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Role:        p.Role,
		BearerToken: token,
	}
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

// Public returns a copy without the credential, safe to hand to the UI.
func (s *Session) Public() Session {
	c := *s
	c.BearerToken = ""
	return c
}
