package domain

import "time"

// SyncStats holds per-category statistics for one sync run.
type SyncStats struct {
	Category Category
	Fetched  int
	Matched  int
	Saved    int
	Errors   int
	Duration time.Duration
}

// SyncResult is the aggregate outcome of one full sync cycle. Its JSON shape
// is the contract of the /api/sync endpoint.
type SyncResult struct {
	Success       bool   `json:"success"`
	GoodsFound    int    `json:"goodsFound"`
	GoodsSaved    int    `json:"goodsSaved"`
	ServicesFound int    `json:"servicesFound"`
	ServicesSaved int    `json:"servicesSaved"`
	TotalNew      int    `json:"totalNew"`
	Error         string `json:"error,omitempty"`
}

// Apply folds one category's stats into the result.
func (r *SyncResult) Apply(stats SyncStats) {
	switch stats.Category {
	case CategoryService:
		r.ServicesFound = stats.Fetched
		r.ServicesSaved = stats.Saved
	default:
		r.GoodsFound = stats.Fetched
		r.GoodsSaved = stats.Saved
	}
	r.TotalNew += stats.Saved
}
