package source

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/followgraph/pkg/common"
)

// ErrUnknownHandle is returned when the upstream reports that a handle does
// not exist.
var ErrUnknownHandle = errors.New("unknown handle")

// ConnectionSource pages through the accounts a handle follows. Cursors are
// opaque; the empty cursor requests the first page and a page with an empty
// NextCursor is the last one.
type ConnectionSource interface {
	LookupUser(ctx context.Context, handle string) (common.Connection, error)
	FetchPage(ctx context.Context, handle string, cursor string) (common.Page, error)
}
