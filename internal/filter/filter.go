// Package filter derives the console's booking list from the store snapshot.
// Everything here is pure: the input slice is never modified and the same
// input always yields the same ordered output.
package filter

import (
	"sort"
	"strings"

	"camrent/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortOrder string

const (
	SortNewest       SortOrder = "newest"
	SortAlphabetical SortOrder = "alphabetical"
)

// TabAll shows every non-cart booking; tabs 1..5 are one status each.
const (
	TabAll = 0
	TabMax = 5
)

type Criteria struct {
	Query     string
	Tab       int
	Sort      SortOrder
	CartLabel string
}

// Normalize trims the query and replaces out-of-range values with defaults:
// unknown tabs become TabAll, unknown sort orders become SortNewest.
func (c Criteria) Normalize() Criteria {
	c.Query = strings.TrimSpace(c.Query)
	if c.Tab < TabAll || c.Tab > TabMax {
		c.Tab = TabAll
	}
	if c.Sort != SortAlphabetical {
		c.Sort = SortNewest
	}
	if c.CartLabel == "" {
		c.CartLabel = models.CartLabel
	}
	return c
}

// ApplyFilters returns the bookings matching c, ordered by c.Sort.
func ApplyFilters(bookings []models.Booking, c Criteria) []models.Booking {
	c = c.Normalize()
	m := newMatcher(c.Query)

	out := make([]models.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.StatusLabel == c.CartLabel {
			continue
		}
		if !m.match(&b) {
			continue
		}
		if !inTab(&b, c.Tab) {
			continue
		}
		out = append(out, b.Clone())
	}

	switch c.Sort {
	case SortAlphabetical:
		col := collate.New(language.Vietnamese)
		sort.SliceStable(out, func(i, j int) bool {
			return col.CompareString(out[i].ID, out[j].ID) < 0
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedUnix() > out[j].CreatedUnix()
		})
	}
	return out
}

// TabCounts returns how many bookings each tab would show for query.
func TabCounts(bookings []models.Booking, query, cartLabel string) [TabMax + 1]int {
	c := Criteria{Query: query, CartLabel: cartLabel}.Normalize()
	m := newMatcher(c.Query)

	var counts [TabMax + 1]int
	for i := range bookings {
		b := &bookings[i]
		if b.StatusLabel == c.CartLabel || !m.match(b) {
			continue
		}
		counts[TabAll]++
		if tab := models.StatusNumber(b.StatusLabel); tab >= 1 && tab <= TabMax {
			counts[tab]++
		}
	}
	return counts
}

func inTab(b *models.Booking, tab int) bool {
	if tab == TabAll {
		return true
	}
	return models.StatusNumber(b.StatusLabel) == tab
}

type matcher struct {
	folder cases.Caser
	needle string
}

func newMatcher(query string) *matcher {
	m := &matcher{folder: cases.Fold()}
	m.needle = m.folder.String(query)
	return m
}

// match is a case-insensitive substring test over id, renter id, item names,
// province and district.
func (m *matcher) match(b *models.Booking) bool {
	if m.needle == "" {
		return true
	}
	fields := make([]string, 0, 4+len(b.Items))
	fields = append(fields, b.ID, b.RenterID, b.Province, b.District)
	for _, it := range b.Items {
		fields = append(fields, it.Name)
	}
	for _, f := range fields {
		if strings.Contains(m.folder.String(f), m.needle) {
			return true
		}
	}
	return false
}
