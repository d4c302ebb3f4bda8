package domain

// Session is the authentication context attached to a request. Anonymous
// visitors get a zero-valued session: not authenticated, no username.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Role          string `json:"role,omitempty"`
}

// NewSession creates an authenticated session for the given identity.
func NewSession(username, role string) Session {
	return Session{
		Authenticated: username != "",
		Username:      username,
		Role:          role,
	}
}

// OwnerKey returns the cart owner key for this session: the signed-in
// username, or empty for anonymous sessions (which have no cart).
func (s Session) OwnerKey() string {
	if !s.Authenticated {
		return ""
	}
	return s.Username
}
