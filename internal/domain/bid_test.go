package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		bidNo string
		want  Category
	}{
		{"20240815123-00", CategoryGoods},
		{"R25BK00123456", CategoryService},
		{"BK20250101", CategoryService},
		{"", CategoryGoods},
		{"20240101bk-00", CategoryGoods}, // marker is case sensitive
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CategoryOf(tt.bidNo), "bidNo %q", tt.bidNo)
	}
}

func TestCategoryLabel(t *testing.T) {
	assert.Equal(t, "물품", CategoryGoods.Label())
	assert.Equal(t, "용역", CategoryService.Label())
}

// Two notices without a bid number collapse to the same key when title and
// date match, regardless of agency. Accepted limitation of the source data.
func TestFallbackKey_CollidesAcrossAgencies(t *testing.T) {
	date := time.Date(2025, 8, 20, 10, 30, 0, 0, time.UTC)

	a := FallbackKey("측량용역 공고", date)
	b := FallbackKey("측량용역 공고", date)

	assert.Equal(t, a, b)
	assert.Equal(t, "측량용역 공고_2025/08/20", a)
}
