// Package auth guards the HTTP API.
//
// There is a single administrator account, configured as a username and an
// Argon2id password hash (PHC string format). A successful login yields a
// short-lived HS256 JWT that the API accepts as a bearer token. Tokens are
// validated by signature and expiry only; there is no token store.
//
// Generate a hash for the config file with:
//
//	glscript hash-password
package auth
