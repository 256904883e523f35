//go:build integration

package postgres

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"g2b_monitor/internal/domain"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	migrationsPath, err := filepath.Abs("../../../migrations")
	s.Require().NoError(err)

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.WithInitScripts(
			filepath.Join(migrationsPath, "000001_create_bids.up.sql"),
		),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM bids")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) testBid(bidNo string) *domain.Bid {
	announced := time.Date(2025, 8, 20, 10, 30, 0, 0, time.UTC)
	closeAt := announced.AddDate(0, 0, 9)
	return &domain.Bid{
		Source:      domain.SourceAPI,
		BidNo:       bidNo,
		Title:       "수치지도 제작",
		Agency:      "국토지리정보원",
		AgencyCode:  "1613436",
		Category:    domain.CategoryOf(bidNo),
		AnnouncedAt: announced,
		CloseAt:     &closeAt,
		URL:         "https://example.com/bid/" + bidNo,
	}
}

func (s *PostgresIntegrationSuite) TestInsertIgnore_NewThenDuplicate() {
	store := NewBidStore(s.db)

	inserted, err := store.InsertIgnore(s.ctx, s.testBid("20250820123-00"))
	s.NoError(err)
	s.True(inserted)

	// Same key again: swallowed, reported as not new, single row remains.
	inserted, err = store.InsertIgnore(s.ctx, s.testBid("20250820123-00"))
	s.NoError(err)
	s.False(inserted)

	count, err := store.CountByBidNo(s.ctx, domain.SourceAPI, "20250820123-00")
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestInsertIgnore_SameKeyDifferentSource() {
	store := NewBidStore(s.db)

	bid := s.testBid("20250820123-00")
	inserted, err := store.InsertIgnore(s.ctx, bid)
	s.NoError(err)
	s.True(inserted)

	scraped := s.testBid("20250820123-00")
	scraped.Source = domain.SourceScrape
	inserted, err = store.InsertIgnore(s.ctx, scraped)
	s.NoError(err)
	s.True(inserted)
}

func (s *PostgresIntegrationSuite) TestListRecent_OrderAndLimit() {
	store := NewBidStore(s.db)

	base := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		bid := s.testBid("NO-" + string(rune('A'+i)))
		bid.AnnouncedAt = base.AddDate(0, 0, i)
		_, err := store.InsertIgnore(s.ctx, bid)
		s.Require().NoError(err)
	}

	bids, err := store.ListRecent(s.ctx, 3)
	s.NoError(err)
	s.Require().Len(bids, 3)
	s.Equal("NO-E", bids[0].BidNo)
	s.Equal("NO-D", bids[1].BidNo)
	s.Equal("NO-C", bids[2].BidNo)
}

func (s *PostgresIntegrationSuite) TestListSince() {
	store := NewBidStore(s.db)

	old := s.testBid("OLD-1")
	old.AnnouncedAt = time.Now().AddDate(0, 0, -90)
	recent := s.testBid("NEW-1")
	recent.AnnouncedAt = time.Now().AddDate(0, 0, -3)

	for _, b := range []*domain.Bid{old, recent} {
		_, err := store.InsertIgnore(s.ctx, b)
		s.Require().NoError(err)
	}

	bids, err := store.ListSince(s.ctx, time.Now().AddDate(0, 0, -60))
	s.NoError(err)
	s.Require().Len(bids, 1)
	s.Equal("NEW-1", bids[0].BidNo)
}

func (s *PostgresIntegrationSuite) TestMarkNotified() {
	store := NewBidStore(s.db)

	for _, no := range []string{"A-1", "A-2", "A-3"} {
		_, err := store.InsertIgnore(s.ctx, s.testBid(no))
		s.Require().NoError(err)
	}

	s.NoError(store.MarkNotified(s.ctx, domain.SourceAPI, []string{"A-1", "A-3"}))

	bids, err := store.ListRecent(s.ctx, 10)
	s.NoError(err)

	notified := map[string]bool{}
	for _, b := range bids {
		notified[b.BidNo] = b.Notified
	}
	s.True(notified["A-1"])
	s.False(notified["A-2"])
	s.True(notified["A-3"])
}

func (s *PostgresIntegrationSuite) TestMarkNotified_EmptyList() {
	store := NewBidStore(s.db)
	s.NoError(store.MarkNotified(s.ctx, domain.SourceAPI, nil))
}
