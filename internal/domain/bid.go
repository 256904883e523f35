package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrBidExists is returned by stores when an insert hits the unique key of an
// already persisted bid. The sync engine treats it as "not new", never as a failure.
var ErrBidExists = errors.New("bid already exists")

// Category classifies a bid by procurement type.
type Category string

const (
	CategoryGoods   Category = "goods"
	CategoryService Category = "service"
)

// CategoryOf derives the category from the bid notice number. Service notices
// carry a "BK" marker inside the number; everything else is goods. This is an
// upstream numbering convention, not an authoritative API field.
func CategoryOf(bidNo string) Category {
	if strings.Contains(bidNo, "BK") {
		return CategoryService
	}
	return CategoryGoods
}

// Label returns the Korean display label used in notifications.
func (c Category) Label() string {
	if c == CategoryService {
		return "용역"
	}
	return "물품"
}

// Provenance of a persisted bid.
const (
	SourceAPI    = "api"
	SourceScrape = "scrape"
)

// Bid is a single procurement notice in the unified persisted schema. Records
// written by the API sync path carry Source "api"; rows left behind by the
// deprecated browser-scraping pipeline carry "scrape".
type Bid struct {
	ID          int64      `db:"id" json:"-"`
	Source      string     `db:"source" json:"source"`
	BidNo       string     `db:"bid_no" json:"bidNo"`
	Title       string     `db:"title" json:"title"`
	Agency      string     `db:"agency" json:"agency"`
	AgencyCode  string     `db:"agency_code" json:"agencyCode"`
	Category    Category   `db:"category" json:"category"`
	AnnouncedAt time.Time  `db:"announced_at" json:"announcedAt"`
	CloseAt     *time.Time `db:"close_at" json:"closeAt,omitempty"`
	URL         string     `db:"url" json:"url"`
	Notified    bool       `db:"notified" json:"notified"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
}

// FallbackKey builds the composite key used when a notice has no extractable
// bid number. Two distinct notices with the same title and date collapse to
// the same key; that collision is an accepted limitation of the source data.
func FallbackKey(title string, date time.Time) string {
	return title + "_" + date.Format("2006/01/02")
}
