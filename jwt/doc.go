// Package jwt issues and verifies access tokens for the local identity
// authority, and reads the expiry of any JWT-shaped access token so a session
// store can refresh ahead of it.
package jwt
