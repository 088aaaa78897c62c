package models

// PKCE is the code challenge a public client sends to /authorize,
// Method is the transformation the client applied to its code verifier
type PKCE struct {
	CodeChallenge string `json:"code_challenge"`
	Method        string `json:"code_challenge_method"`
}

// Present reports whether the client asked for PKCE at all
func (p PKCE) Present() bool {
	return p.CodeChallenge != ""
}
