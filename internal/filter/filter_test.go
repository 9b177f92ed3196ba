package filter

import (
	"testing"
	"time"

	"camrent/internal/models"

	"github.com/stretchr/testify/assert"
)

func at(day int) *time.Time {
	t := time.Date(2025, 5, day, 10, 0, 0, 0, time.UTC)
	return &t
}

func ids(bookings []models.Booking) []string {
	out := make([]string, len(bookings))
	for i, b := range bookings {
		out[i] = b.ID
	}
	return out
}

func sample() []models.Booking {
	return []models.Booking{
		{ID: "BK-003", RenterID: "u-9", StatusLabel: models.LabelPending, CreatedAt: at(3), Province: "Hà Nội", District: "Cầu Giấy",
			Items: []models.RentedItem{{Name: "Canon EOS R6", Type: "camera"}}},
		{ID: "BK-001", RenterID: "u-1", StatusLabel: models.LabelConfirmed, CreatedAt: at(5), Province: "Đà Nẵng",
			Items: []models.RentedItem{{Name: "Sony 24-70 GM", Type: "lens"}}},
		{ID: "BK-002", RenterID: "u-2", StatusLabel: models.CartLabel, CreatedAt: at(9)},
		{ID: "BK-004", RenterID: "u-4", StatusLabel: "Đã từ chối", CreatedAt: at(1), Province: "Huế"},
		{ID: "bk-005", RenterID: "u-5", StatusLabel: models.LabelCancelled, Province: "Hồ Chí Minh"},
		{ID: "BK-006", RenterID: "u-6", StatusLabel: models.LabelInProgress, CreatedAt: at(5), District: "Quận 1"},
	}
}

func TestApplyFiltersExcludesCart(t *testing.T) {
	got := ApplyFilters(sample(), Criteria{})
	assert.NotContains(t, ids(got), "BK-002")
	assert.Len(t, got, 5)
}

func TestApplyFiltersNewestOrder(t *testing.T) {
	got := ApplyFilters(sample(), Criteria{Sort: SortNewest})
	// equal timestamps keep source order; missing timestamp sorts as epoch 0
	assert.Equal(t, []string{"BK-001", "BK-006", "BK-003", "BK-004", "bk-005"}, ids(got))
}

func TestApplyFiltersAlphabetical(t *testing.T) {
	got := ApplyFilters(sample(), Criteria{Sort: SortAlphabetical})
	assert.Equal(t, []string{"BK-001", "BK-003", "BK-004", "bk-005", "BK-006"}, ids(got))
}

func TestApplyFiltersTabs(t *testing.T) {
	tests := []struct {
		tab  int
		want []string
	}{
		{tab: 1, want: []string{"BK-003"}},
		{tab: 2, want: []string{"BK-001"}},
		{tab: 3, want: []string{"BK-006"}},
		{tab: 4, want: []string{}},
		{tab: 5, want: []string{"bk-005"}},
	}
	for _, tt := range tests {
		got := ApplyFilters(sample(), Criteria{Tab: tt.tab})
		assert.Equal(t, tt.want, ids(got), "tab %d", tt.tab)
	}
}

func TestUnknownLabelOnlyInTabAll(t *testing.T) {
	for tab := 1; tab <= TabMax; tab++ {
		assert.NotContains(t, ids(ApplyFilters(sample(), Criteria{Tab: tab})), "BK-004")
	}
	assert.Contains(t, ids(ApplyFilters(sample(), Criteria{Tab: TabAll})), "BK-004")
}

func TestApplyFiltersQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{name: "booking id case-insensitive", query: "bk-00", want: []string{"BK-001", "BK-006", "BK-003", "BK-004", "bk-005"}},
		{name: "renter id", query: "U-9", want: []string{"BK-003"}},
		{name: "item name", query: "eos r6", want: []string{"BK-003"}},
		{name: "province with diacritics", query: "đà nẵng", want: []string{"BK-001"}},
		{name: "district", query: "quận", want: []string{"BK-006"}},
		{name: "trimmed", query: "  huế ", want: []string{"BK-004"}},
		{name: "no match", query: "nikon", want: []string{}},
		{name: "cart never matches", query: "BK-002", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(ApplyFilters(sample(), Criteria{Query: tt.query})))
		})
	}
}

func TestApplyFiltersIdempotent(t *testing.T) {
	in := sample()
	c := Criteria{Query: "bk", Tab: 0, Sort: SortAlphabetical}
	first := ApplyFilters(in, c)
	second := ApplyFilters(in, c)
	assert.Equal(t, first, second)

	// input untouched
	assert.Equal(t, sample(), in)
}

func TestCriteriaNormalize(t *testing.T) {
	c := Criteria{Query: "  x ", Tab: 9, Sort: "random"}.Normalize()
	assert.Equal(t, "x", c.Query)
	assert.Equal(t, TabAll, c.Tab)
	assert.Equal(t, SortNewest, c.Sort)
	assert.Equal(t, models.CartLabel, c.CartLabel)
}

func TestCustomCartLabel(t *testing.T) {
	in := []models.Booking{{ID: "a", StatusLabel: "Basket"}, {ID: "b", StatusLabel: models.CartLabel}}
	got := ApplyFilters(in, Criteria{CartLabel: "Basket"})
	assert.Equal(t, []string{"b"}, ids(got))
}

func TestTabCounts(t *testing.T) {
	counts := TabCounts(sample(), "", "")
	assert.Equal(t, [6]int{5, 1, 1, 1, 0, 1}, counts)

	counts = TabCounts(sample(), "canon", "")
	assert.Equal(t, [6]int{1, 1, 0, 0, 0, 0}, counts)
}
