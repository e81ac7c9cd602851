package model

// Session holds the tokens and user record for one authenticated session.
// AccessToken and RefreshToken are always both present or both absent.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

func (s *Session) Valid() bool {
	return s != nil && s.AccessToken != "" && s.RefreshToken != ""
}
