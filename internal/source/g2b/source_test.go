package g2b

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g2b_monitor/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		WindowDays: 5,
		Timeout:    5 * time.Second,
	}, testLogger())
}

const sampleBody = `{
	"response": {
		"header": {"resultCode": "00", "resultMsg": "정상"},
		"body": {
			"items": [
				{
					"bidNtceNo": "20250820123-00",
					"bidNtceNm": "수치지도 제작 용역",
					"dminsttNm": "국토지리정보원",
					"dminsttCd": "1613436",
					"bidNtceDt": "2025-08-20 10:30:00",
					"bidClseDt": "2025-08-29 18:00:00",
					"bidNtceUrl": "https://example.com/bid/20250820123-00"
				}
			],
			"numOfRows": 100,
			"pageNo": 1,
			"totalCount": 250
		}
	}
}`

func TestFetchPage_RequestParams(t *testing.T) {
	var gotPath string
	var gotQuery url.Values

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Write([]byte(sampleBody))
	})

	bids, total, err := client.FetchPage(context.Background(), domain.CategoryGoods, domain.Window{}, 2, 100)
	require.NoError(t, err)

	assert.Equal(t, "/"+endpointGoods, gotPath)
	assert.Equal(t, "test-key", gotQuery.Get("serviceKey"))
	assert.Equal(t, "2", gotQuery.Get("pageNo"))
	assert.Equal(t, "100", gotQuery.Get("numOfRows"))
	assert.Equal(t, "1", gotQuery.Get("inqryDiv"))
	assert.Equal(t, "json", gotQuery.Get("type"))

	// Default rolling window: both boundaries at day start, YYYYMMDDHHMM.
	begin, end := gotQuery.Get("inqryBgnDt"), gotQuery.Get("inqryEndDt")
	assert.Len(t, begin, 12)
	assert.Len(t, end, 12)
	assert.Equal(t, "0000", begin[8:])
	assert.Equal(t, "0000", end[8:])

	wantBegin := time.Now().AddDate(0, 0, -5).Format("20060102")
	wantEnd := time.Now().AddDate(0, 0, 1).Format("20060102")
	assert.Equal(t, wantBegin, begin[:8])
	assert.Equal(t, wantEnd, end[:8])

	require.Len(t, bids, 1)
	assert.Equal(t, "20250820123-00", bids[0].BidNo)
	assert.Equal(t, 250, total)
}

func TestFetchPage_ServiceEndpoint(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(sampleBody))
	})

	_, _, err := client.FetchPage(context.Background(), domain.CategoryService, domain.Window{}, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, "/"+endpointService, gotPath)
}

func TestFetchPage_ExplicitWindow(t *testing.T) {
	var gotQuery url.Values
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(sampleBody))
	})

	day := time.Date(2025, 8, 20, 0, 0, 0, 0, time.Local)
	_, _, err := client.FetchPage(context.Background(), domain.CategoryGoods, domain.DayWindow(day), 1, 100)
	require.NoError(t, err)

	assert.Equal(t, "202508200000", gotQuery.Get("inqryBgnDt"))
	assert.Equal(t, "202508202359", gotQuery.Get("inqryEndDt"))
}

func TestFetchPage_StringWrappedBody(t *testing.T) {
	// Some responses arrive as a JSON string containing the document.
	wrapped := `"{\"response\":{\"body\":{\"items\":[{\"bidNtceNo\":\"X1\"}],\"totalCount\":\"17\"}}}"`

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(wrapped))
	})

	bids, total, err := client.FetchPage(context.Background(), domain.CategoryGoods, domain.Window{}, 1, 100)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, "X1", bids[0].BidNo)
	assert.Equal(t, 17, total)
}

func TestFetchPage_EmptyItemsShapes(t *testing.T) {
	bodies := []string{
		`{"response":{"body":{"items":null,"totalCount":0}}}`,
		`{"response":{"body":{"items":"","totalCount":"0"}}}`,
		`{"response":{"body":{"totalCount":0}}}`,
	}

	for _, body := range bodies {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		})

		bids, total, err := client.FetchPage(context.Background(), domain.CategoryGoods, domain.Window{}, 1, 100)
		require.NoError(t, err, "body %s", body)
		assert.Empty(t, bids)
		assert.Zero(t, total)
	}
}

func TestFetchPage_TotalCountFallsBackToItemLength(t *testing.T) {
	body := `{"response":{"body":{"items":[{"bidNtceNo":"A"},{"bidNtceNo":"B"}]}}}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	_, total, err := client.FetchPage(context.Background(), domain.CategoryGoods, domain.Window{}, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestFetchPage_TransportErrorsSurface(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, _, err := client.FetchPage(context.Background(), domain.CategoryGoods, domain.Window{}, 1, 100)
	assert.ErrorContains(t, err, "unexpected status: 500")
}

func TestFetchPage_ParseErrorsSurface(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<OpenAPI_ServiceResponse>not json</OpenAPI_ServiceResponse>`))
	})

	_, _, err := client.FetchPage(context.Background(), domain.CategoryGoods, domain.Window{}, 1, 100)
	assert.ErrorContains(t, err, "decode response")
}

func TestFetchPage_APIErrorCode(t *testing.T) {
	body := `{"response":{"header":{"resultCode":"07","resultMsg":"입력범위값 초과 에러"},"body":{"totalCount":0}}}`
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	})

	_, _, err := client.FetchPage(context.Background(), domain.CategoryGoods, domain.Window{}, 1, 100)
	assert.ErrorContains(t, err, "api error 07")
}

func TestNormalize(t *testing.T) {
	raw := RawBid{
		BidNtceNo:  "R25BK00123456",
		BidNtceNm:  "해양조사 용역",
		DminsttNm:  "국립해양조사원",
		DminsttCd:  "1192136",
		BidNtceDt:  "2025-08-20 10:30:00",
		BidClseDt:  "2025-08-29 18:00:00",
		BidNtceURL: "https://example.com/bid/R25BK00123456",
	}

	bid := raw.Normalize()

	assert.Equal(t, domain.SourceAPI, bid.Source)
	assert.Equal(t, "R25BK00123456", bid.BidNo)
	assert.Equal(t, domain.CategoryService, bid.Category)
	assert.Equal(t, "해양조사 용역", bid.Title)
	assert.Equal(t, "국립해양조사원", bid.Agency)
	assert.Equal(t, "1192136", bid.AgencyCode)
	assert.Equal(t, time.Date(2025, 8, 20, 10, 30, 0, 0, time.Local), bid.AnnouncedAt)
	require.NotNil(t, bid.CloseAt)
	assert.Equal(t, time.Date(2025, 8, 29, 18, 0, 0, 0, time.Local), *bid.CloseAt)
}

func TestNormalize_MissingFieldsPassThrough(t *testing.T) {
	bid := RawBid{BidNtceNo: "20250820123-00"}.Normalize()

	assert.Equal(t, domain.CategoryGoods, bid.Category)
	assert.True(t, bid.AnnouncedAt.IsZero())
	assert.Nil(t, bid.CloseAt)
	assert.Empty(t, bid.Title)
}

func TestNormalize_FallbackKeyWithoutBidNo(t *testing.T) {
	a := RawBid{BidNtceNm: "지도 수정 용역", BidNtceDt: "2025/08/20", DminsttCd: "1613436"}.Normalize()
	b := RawBid{BidNtceNm: "지도 수정 용역", BidNtceDt: "2025/08/20", DminsttCd: "1400000"}.Normalize()

	// Distinct agencies, same title and date: same derived key by design.
	assert.Equal(t, a.BidNo, b.BidNo)
	assert.Equal(t, "지도 수정 용역_2025/08/20", a.BidNo)
}
