// Package rest is a goSession.IdentityService backed by a GoTrue-compatible
// REST authority (the /auth/v1 API served by Supabase and self-hosted GoTrue).
//
// Response shapes differ between deployments and versions: the session may be
// at the top level or nested under "session" or "data.session", and the user
// under "user" or "data.user". The client normalizes all of them into a
// goSession.Session so no shape ambiguity reaches the store.
package rest
