package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		limit  int
		offset int
	}{
		{"defaults", "", DefaultLimit, 0},
		{"custom", "?limit=5&offset=10", 5, 10},
		{"capped", "?limit=500", MaxLimit, 0},
		{"negative offset", "?offset=-5", DefaultLimit, 0},
		{"garbage", "?limit=abc&offset=xyz", DefaultLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := paramsFor(t, tt.query)
			if p.Limit != tt.limit || p.Offset != tt.offset {
				t.Errorf("got limit=%d offset=%d, want %d/%d", p.Limit, p.Offset, tt.limit, tt.offset)
			}
		})
	}
}

func TestParams_Bounds(t *testing.T) {
	tests := []struct {
		name       string
		params     Params
		total      int
		start, end int
	}{
		{"first page", Params{Limit: 10, Offset: 0}, 32, 0, 10},
		{"last partial page", Params{Limit: 10, Offset: 30}, 32, 30, 32},
		{"past end", Params{Limit: 10, Offset: 40}, 32, 32, 32},
		{"empty", Params{Limit: 10, Offset: 0}, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.params.Bounds(tt.total)
			if start != tt.start || end != tt.end {
				t.Errorf("Bounds(%d) = [%d,%d), want [%d,%d)", tt.total, start, end, tt.start, tt.end)
			}
		})
	}
}

func TestParams_HasNext(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		total  int
		want   bool
	}{
		{"more results", Params{Limit: 10, Offset: 0}, 25, true},
		{"exact end", Params{Limit: 10, Offset: 15}, 25, false},
		{"no results", Params{Limit: 10, Offset: 0}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.HasNext(tt.total); got != tt.want {
				t.Errorf("HasNext() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	data := []string{"a", "b", "c"}
	if r := NewResponse(data, 10, 3, 0); !r.HasMore || r.Total != 10 {
		t.Errorf("expected has_more with total 10, got %+v", r)
	}
	if r := NewResponse(data, 3, 3, 0); r.HasMore {
		t.Error("expected has_more to be false when offset+limit >= total")
	}
}
