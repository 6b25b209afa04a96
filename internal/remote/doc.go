// Package remote resolves claim payloads from remote HTTP JSON endpoints.
//
// A resolution builds a GET request from a declarative ClaimConfig and the
// session identity, optionally obtaining a bearer token through a
// client-credentials exchange first, and returns the endpoint's JSON body.
// Any failure aborts the resolution with a *Error; no fallback payload is
// ever produced.
//
// Configured parameter and header strings use the flat form
//
//	key1=value1&key2=value2
//
// Values may contain '=' but there is no way to escape '&'.
package remote
