package g2b

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"g2b_monitor/internal/domain"
)

// apiResponse mirrors the nested envelope of the bid-listing API.
type apiResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items      rawBidList `json:"items"`
			PageNo     flexInt    `json:"pageNo"`
			NumOfRows  flexInt    `json:"numOfRows"`
			TotalCount flexInt    `json:"totalCount"`
		} `json:"body"`
	} `json:"response"`
}

// flexInt decodes integers the API delivers either as numbers or as strings.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// rawBidList tolerates the API's empty-items shapes: a missing field, null,
// or an empty string where the array would be.
type rawBidList []RawBid

func (l *rawBidList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" || string(trimmed) == `""` {
		*l = nil
		return nil
	}
	var items []RawBid
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// RawBid is one notice as returned by the upstream API. Unknown fields are
// dropped on decode; absent fields pass through as empty strings.
type RawBid struct {
	BidNtceNo  string `json:"bidNtceNo"`
	BidNtceNm  string `json:"bidNtceNm"`
	DminsttNm  string `json:"dminsttNm"`
	DminsttCd  string `json:"dminsttCd"`
	BidNtceDt  string `json:"bidNtceDt"`
	BidClseDt  string `json:"bidClseDt"`
	BidNtceURL string `json:"bidNtceUrl"`
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006/01/02",
	"2006-01-02",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Normalize maps a raw notice into the persisted schema. Dates that fail to
// parse stay zero rather than dropping the record; a notice without a bid
// number falls back to the title+date composite key.
func (r RawBid) Normalize() domain.Bid {
	announcedAt, _ := parseDate(r.BidNtceDt)

	var closeAt *time.Time
	if t, ok := parseDate(r.BidClseDt); ok {
		closeAt = &t
	}

	bidNo := r.BidNtceNo
	if bidNo == "" {
		bidNo = domain.FallbackKey(r.BidNtceNm, announcedAt)
	}

	return domain.Bid{
		Source:      domain.SourceAPI,
		BidNo:       bidNo,
		Title:       r.BidNtceNm,
		Agency:      r.DminsttNm,
		AgencyCode:  r.DminsttCd,
		Category:    domain.CategoryOf(r.BidNtceNo),
		AnnouncedAt: announcedAt,
		CloseAt:     closeAt,
		URL:         r.BidNtceURL,
	}
}
