// Package notify posts new-bid alerts to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"g2b_monitor/internal/domain"
)

// Discord caps embeds at 10 per webhook request.
const maxEmbedsPerMessage = 10

const (
	colorGoods   = 0x22c55e
	colorService = 0x3b82f6

	missingValue = "정보없음"
	footerText   = "G2B 발주 모니터링 (API)"
)

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title     string       `json:"title"`
	URL       string       `json:"url,omitempty"`
	Color     int          `json:"color"`
	Fields    []embedField `json:"fields"`
	Footer    embedFooter  `json:"footer"`
	Timestamp string       `json:"timestamp"`
}

type webhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds"`
}

// Discord sends bid alerts to a single configured webhook. A Discord with an
// empty URL is a logged no-op, not an error.
type Discord struct {
	httpClient *http.Client
	webhookURL string
	logger     *slog.Logger
	now        func() time.Time
}

func NewDiscord(webhookURL string, logger *slog.Logger) *Discord {
	if webhookURL == "" {
		logger.Warn("discord webhook url not configured, notifications disabled")
	}
	return &Discord{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
		logger:     logger.With("sink", "discord"),
		now:        time.Now,
	}
}

// Send posts a single bid alert.
func (d *Discord) Send(ctx context.Context, bid *domain.Bid) error {
	if d.webhookURL == "" {
		d.logger.Debug("webhook not configured, skipping notification", "bid_no", bid.BidNo)
		return nil
	}

	if err := d.post(ctx, webhookPayload{Embeds: []embed{d.buildEmbed(bid)}}); err != nil {
		return err
	}

	d.logger.Info("alert sent", "bid_no", bid.BidNo, "title", bid.Title)
	return nil
}

// SendBatch posts alerts for a list of newly found bids, chunked to the
// sink's embed limit. Only the first chunk carries the summary line.
func (d *Discord) SendBatch(ctx context.Context, bids []domain.Bid) error {
	if d.webhookURL == "" || len(bids) == 0 {
		if d.webhookURL == "" {
			d.logger.Debug("webhook not configured, skipping batch notification", "count", len(bids))
		}
		return nil
	}

	embeds := make([]embed, len(bids))
	for i := range bids {
		embeds[i] = d.buildEmbed(&bids[i])
	}

	for start := 0; start < len(embeds); start += maxEmbedsPerMessage {
		end := start + maxEmbedsPerMessage
		if end > len(embeds) {
			end = len(embeds)
		}

		payload := webhookPayload{Embeds: embeds[start:end]}
		if start == 0 {
			payload.Content = fmt.Sprintf("🔔 **%d건의 새로운 발주 공고가 발견되었습니다!**", len(bids))
		}

		if err := d.post(ctx, payload); err != nil {
			return fmt.Errorf("chunk starting at %d: %w", start, err)
		}
	}

	d.logger.Info("batch alert sent", "count", len(bids))
	return nil
}

func (d *Discord) buildEmbed(bid *domain.Bid) embed {
	return embed{
		Title:  fmt.Sprintf("[%s] %s", bid.Category.Label(), bid.Title),
		URL:    bid.URL,
		Color:  colorFor(bid.Category),
		Fields: []embedField{
			{Name: "공고번호", Value: orMissing(bid.BidNo), Inline: true},
			{Name: "수요기관", Value: orMissing(bid.Agency), Inline: true},
			{Name: "게시일시", Value: formatTime(bid.AnnouncedAt), Inline: true},
			{Name: "마감일시", Value: formatTimePtr(bid.CloseAt), Inline: true},
		},
		Footer:    embedFooter{Text: footerText},
		Timestamp: d.now().UTC().Format(time.RFC3339),
	}
}

func (d *Discord) post(ctx context.Context, payload webhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("webhook status: %d", resp.StatusCode)
	}
	return nil
}

func colorFor(c domain.Category) int {
	if c == domain.CategoryService {
		return colorService
	}
	return colorGoods
}

func orMissing(s string) string {
	if s == "" {
		return missingValue
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return missingValue
	}
	return t.Format("2006-01-02 15:04")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return missingValue
	}
	return formatTime(*t)
}
