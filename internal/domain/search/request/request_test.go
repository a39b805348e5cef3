package request

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kailas-cloud/talk2shop/internal/domain/search/filter"
)

func TestNew_Defaults(t *testing.T) {
	r := New("  wireless keyboard ", filter.Expression{}, 0, 0, Limits{})
	if r.Query() != "wireless keyboard" {
		t.Errorf("Query() = %q", r.Query())
	}
	if r.Page() != 1 {
		t.Errorf("Page() = %d, want 1", r.Page())
	}
	if r.Limit() != DefaultLimit {
		t.Errorf("Limit() = %d, want %d", r.Limit(), DefaultLimit)
	}
	if r.IsListing() {
		t.Error("IsListing() = true for non-empty query")
	}
}

func TestNew_ClampsNegativeValues(t *testing.T) {
	r := New("q", filter.Expression{}, -3, -1, Limits{DefaultLimit: 7, MaxLimit: 50})
	if r.Page() != 1 || r.Limit() != 7 {
		t.Errorf("page/limit = %d/%d, want 1/7", r.Page(), r.Limit())
	}
	if r.Offset() != 0 {
		t.Errorf("Offset() = %d", r.Offset())
	}
}

func TestNew_CapsLimit(t *testing.T) {
	r := New("q", filter.Expression{}, 1, 500, Limits{MaxLimit: 40})
	if r.Limit() != 40 {
		t.Errorf("Limit() = %d, want 40", r.Limit())
	}
}

func TestNew_WhitespaceQueryIsListing(t *testing.T) {
	r := New(" \t\n", filter.ByCategory("Monitor", ""), 2, 5, Limits{})
	if !r.IsListing() {
		t.Error("whitespace-only query should be a listing")
	}
	if r.Filters().IsEmpty() {
		t.Error("filters should be kept")
	}
}

func TestNew_TruncatesLongQuery(t *testing.T) {
	r := New(strings.Repeat("й", MaxQueryLength), filter.Expression{}, 1, 1, Limits{})
	if len(r.Query()) > MaxQueryLength {
		t.Errorf("len(Query()) = %d", len(r.Query()))
	}
	if !utf8.ValidString(r.Query()) {
		t.Error("truncated query must stay valid UTF-8")
	}
}

func TestOffsetAndEnd(t *testing.T) {
	r := New("q", filter.Expression{}, 3, 5, Limits{})
	if r.Offset() != 10 {
		t.Errorf("Offset() = %d, want 10", r.Offset())
	}
	if r.End() != 15 {
		t.Errorf("End() = %d, want 15", r.End())
	}
}

func TestNew_CapsPage(t *testing.T) {
	r := New("q", filter.Expression{}, math.MaxInt, 10, Limits{})
	if r.Page() != MaxPage {
		t.Fatalf("Page() = %d, want %d", r.Page(), MaxPage)
	}
	if r.Offset() < 0 || r.End() <= r.Offset() {
		t.Errorf("offset/end = %d/%d", r.Offset(), r.End())
	}
}
