package store

import (
	"slices"
	"strings"

	"github.com/OFFIS-RIT/followgraph/pkg/common"
)

// SortVertices orders vertices by handle so that neighbor listings are stable
// across backends.
func SortVertices(vs []common.Vertex) {
	slices.SortFunc(vs, func(a, b common.Vertex) int {
		if c := strings.Compare(a.Handle, b.Handle); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
}
