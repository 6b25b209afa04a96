// Package session models the read-only identity facts a host supplies for
// one token-issuance pass, and the attribute bag scoped to that pass.
package session

// ClientSession is the concrete client a token is being issued for
type ClientSession struct {
	// ClientID identifies the client
	ClientID string `json:"client_id"`
}

// Identity is the host's view of the authenticated user session.
// It is consumed, never mutated, by claim resolution.
type Identity struct {
	// Username is the authenticated login username
	Username string `json:"username"`

	// Client is the client session the current pass issues tokens for.
	// Nil in the legacy session-only path, where client ids are aggregated
	// from ClientIDs instead.
	Client *ClientSession `json:"client,omitempty"`

	// ClientIDs lists the clients associated with the user session.
	// May contain duplicates; see DistinctClientIDs.
	ClientIDs []string `json:"client_ids,omitempty"`

	// Attributes are the user's attributes, possibly multi-valued
	Attributes map[string][]string `json:"attributes,omitempty"`
}

// FirstAttribute returns the first value of the named user attribute.
// The second result reports whether the attribute has any value.
func (i *Identity) FirstAttribute(name string) (string, bool) {
	if i == nil {
		return "", false
	}
	values := i.Attributes[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// DistinctClientIDs returns the session client ids without duplicates,
// in first-seen order
func (i *Identity) DistinctClientIDs() []string {
	if i == nil {
		return nil
	}
	seen := make(map[string]bool, len(i.ClientIDs))
	out := make([]string, 0, len(i.ClientIDs))
	for _, id := range i.ClientIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
