package repositories

// IdentityVerifier verifies a bearer credential presented during the socket
// handshake and resolves it to a user identifier. Token issuance is a
// separate concern; only verification sits on the connection path.
type IdentityVerifier interface {
	Verify(token string) (userID string, err error)
}
