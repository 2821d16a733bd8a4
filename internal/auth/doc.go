// Package auth obtains the OAuth2 credential labelcast uses against the Gmail
// API.
//
// A Provider consults a CredentialStore first. A still-valid token is returned
// unchanged; an expired token carrying a refresh token is refreshed and written
// back; anything else goes through an Authorizer, normally the loopback
// browser flow, and the fresh token replaces the cache. Every failure to end up
// with a usable token is reported as ErrAuthFailure.
package auth
