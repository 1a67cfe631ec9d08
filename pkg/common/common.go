package common

import (
	"regexp"
	"strings"
)

// Handle identifies a person in the follow graph. Handles are compared
// case-insensitively; use NormalizeHandle before any lookup or comparison.
type Handle = string

// VertexRef is the store-assigned identity of a vertex. Its format depends on
// the backing store and must be treated as opaque.
type VertexRef string

// EdgeKindFollows is the only edge kind written by the engine.
const EdgeKindFollows = "follows"

// NormalizeHandle lowercases a handle and strips surrounding whitespace and
// leading "@" characters.
func NormalizeHandle(handle string) string {
	h := strings.TrimSpace(handle)
	h = strings.TrimLeft(h, "@")
	return strings.ToLower(h)
}

var handlePattern = regexp.MustCompile(`^@?[A-Za-z0-9_]{1,15}$`)

// ValidHandle reports whether handle is a well-formed screen name: up to 15
// letters, digits or underscores with an optional leading "@".
func ValidHandle(handle string) bool {
	return handlePattern.MatchString(handle)
}

// SameHandle reports whether a and b name the same person.
func SameHandle(a, b string) bool {
	return NormalizeHandle(a) == NormalizeHandle(b)
}

// Vertex represents one handle in the graph. Vertices are created once and
// never mutated afterwards; the first writer's DisplayName and ExternalID win.
type Vertex struct {
	ID          VertexRef `json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"name"`
	ExternalID  string    `json:"idStr"`
}

// Connection is one account returned by a connection source page.
type Connection struct {
	ExternalID  string `json:"id_str"`
	DisplayName string `json:"name"`
	Handle      string `json:"screen_name"`
}

// Page is one batch of connections. An empty NextCursor means the source has
// no more pages for the handle.
type Page struct {
	Connections []Connection
	NextCursor  string
}

// HasMore reports whether another page can be requested.
func (p Page) HasMore() bool {
	return p.NextCursor != ""
}

// Person is the public shape of a vertex inside an EdgeNotification.
type Person struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Handle string `json:"handle"`
}

// PersonFromVertex converts a stored vertex into its notification shape.
func PersonFromVertex(v Vertex) Person {
	return Person{
		ID:     v.ExternalID,
		Name:   v.DisplayName,
		Handle: v.Handle,
	}
}

// EdgeNotification announces a confirmed follows edge. It is built from two
// resolved vertices, published immediately and never stored.
type EdgeNotification struct {
	Original Person `json:"original"`
	Follower Person `json:"follower"`
}

// NewEdgeNotification builds the notification for the edge original -> follower.
func NewEdgeNotification(original, follower Vertex) EdgeNotification {
	return EdgeNotification{
		Original: PersonFromVertex(original),
		Follower: PersonFromVertex(follower),
	}
}
