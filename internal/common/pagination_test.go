package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePage(t *testing.T) {
	p := ParsePage(httptest.NewRequest(http.MethodGet, "/?page=3&limit=20", nil), 50)
	require.Equal(t, Page{Number: 3, PerPage: 20}, p)
	require.Equal(t, 40, p.Offset())
	require.Equal(t, Pagination{Page: 3, PerPage: 20, TotalItems: 41}, p.Meta(41))

	p = ParsePage(httptest.NewRequest(http.MethodGet, "/?page=-1&limit=abc", nil), 0)
	require.Equal(t, Page{Number: 1, PerPage: 50}, p)
	require.Zero(t, p.Offset())

	p = ParsePage(httptest.NewRequest(http.MethodGet, "/?limit=5000", nil), 50)
	require.Equal(t, MaxPerPage, p.PerPage)
}
