package directory

import domain "github.com/example/chat-relay/domain/chat"

// Service names registered under services.directory.
const (
	ServiceResolve   = "resolve"
	ServiceLookup    = "lookup"
	ServiceLookupIDs = "lookup-ids"
)

// ResolveRequest asks for the user with Username, creating it if needed.
type ResolveRequest struct {
	Username string `json:"username"`
}

// ResolveResponse carries the resolved user.
type ResolveResponse struct {
	User *domain.User `json:"user"`
}

// LookupRequest asks for an existing user.
type LookupRequest struct {
	Username string `json:"username"`
}

// LookupResponse reports whether the user exists.
type LookupResponse struct {
	User  *domain.User `json:"user,omitempty"`
	Found bool         `json:"found"`
}

// LookupIDsRequest asks for users by ID.
type LookupIDsRequest struct {
	IDs []string `json:"ids"`
}

// LookupIDsResponse lists the users that were found.
type LookupIDsResponse struct {
	Users []domain.User `json:"users"`
}
