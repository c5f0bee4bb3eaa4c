package audit

import (
	"cmp"
	"context"
	"slices"
	"time"
)

const (
	DefaultTrailLimit     = 50
	DefaultStatisticsDays = 30

	statisticsPageSize = 1000
)

// QueryService answers read-only questions about the audit trail. When a
// tenant extractor is configured every query is confined to the tenant bound
// to the context.
type QueryService struct {
	store      Store
	tenantID   Extractor
	now        func() time.Time
	maxRecords int
}

// QueryOption configures a QueryService.
type QueryOption func(*QueryService)

// WithQueryTenantExtractor scopes queries to the tenant found in the context.
func WithQueryTenantExtractor(fn Extractor) QueryOption {
	return func(q *QueryService) { q.tenantID = fn }
}

// WithQueryClock overrides the time source used for trailing windows.
func WithQueryClock(now func() time.Time) QueryOption {
	return func(q *QueryService) {
		if now != nil {
			q.now = now
		}
	}
}

// WithMaxReportRecords caps how many records a report or export loads when
// the filter sets no limit. Zero means no cap. Statistics are never capped.
func WithMaxReportRecords(n int) QueryOption {
	return func(q *QueryService) {
		if n >= 0 {
			q.maxRecords = n
		}
	}
}

// NewQueryService creates a query service reading from store.
func NewQueryService(store Store, opts ...QueryOption) *QueryService {
	if store == nil {
		panic("audit: store cannot be nil")
	}
	q := &QueryService{store: store, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Trail returns the records of one entity, newest first. A non-positive
// limit falls back to DefaultTrailLimit.
func (q *QueryService) Trail(ctx context.Context, entityType, entityID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultTrailLimit
	}
	return q.store.Query(ctx, q.scope(ctx, Filter{
		EntityType: entityType,
		EntityID:   entityID,
		Limit:      limit,
	}))
}

// UserActivity returns the records of one actor, newest first, optionally
// bounded by the closed interval [start, end]. Zero times leave that side open.
func (q *QueryService) UserActivity(ctx context.Context, userID string, start, end time.Time) ([]Record, error) {
	return q.store.Query(ctx, q.scope(ctx, Filter{
		UserID: userID,
		From:   start,
		To:     end,
	}))
}

// KeyCount is one bucket of a breakdown.
type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Statistics aggregates activity over a trailing window. Each breakdown is
// computed independently.
type Statistics struct {
	Days            int        `json:"days"`
	From            time.Time  `json:"from"`
	To              time.Time  `json:"to"`
	TotalActions    int        `json:"total_actions"`
	ActionBreakdown []KeyCount `json:"action_breakdown"`
	UserActivity    []KeyCount `json:"user_activity"`
	DailyActivity   []KeyCount `json:"daily_activity"`
}

// Statistics counts the records of the last days days by action, by actor
// and by calendar day (UTC).
func (q *QueryService) Statistics(ctx context.Context, days int) (*Statistics, error) {
	if days <= 0 {
		days = DefaultStatisticsDays
	}
	to := q.now().UTC()
	from := to.AddDate(0, 0, -days)

	actions := make(map[string]int)
	users := make(map[string]int)
	daily := make(map[string]int)
	total := 0

	// the window is closed at to, so later writes cannot shift the pages
	f := q.scope(ctx, Filter{From: from, To: to, Limit: statisticsPageSize})
	for {
		page, err := q.store.Query(ctx, f)
		if err != nil {
			return nil, err
		}
		for i := range page {
			actions[string(page[i].Action)]++
			users[page[i].Actor()]++
			daily[page[i].CreatedAt.UTC().Format(time.DateOnly)]++
		}
		total += len(page)
		if len(page) < f.Limit {
			break
		}
		f.Offset += len(page)
	}

	dailyActivity := breakdown(daily)
	slices.SortFunc(dailyActivity, func(a, b KeyCount) int { return cmp.Compare(a.Key, b.Key) })

	return &Statistics{
		Days:            days,
		From:            from,
		To:              to,
		TotalActions:    total,
		ActionBreakdown: breakdown(actions),
		UserActivity:    breakdown(users),
		DailyActivity:   dailyActivity,
	}, nil
}

// Summary describes a filtered record set.
type Summary struct {
	Total           int        `json:"total"`
	TotalMatching   int64      `json:"total_matching"`
	Truncated       bool       `json:"truncated"`
	Successful      int        `json:"successful"`
	Failed          int        `json:"failed"`
	ActionBreakdown []KeyCount `json:"action_breakdown"`
	EntityBreakdown []KeyCount `json:"entity_breakdown"`
	UserBreakdown   []KeyCount `json:"user_breakdown"`
	First           *time.Time `json:"first,omitempty"`
	Last            *time.Time `json:"last,omitempty"`
}

// Report is a filtered record set with its summary.
type Report struct {
	Filter  Filter   `json:"filter"`
	Summary Summary  `json:"summary"`
	Logs    []Record `json:"logs"`
}

// Report returns the records matching f together with a summary computed
// over exactly those records. Limit and Offset of f are honored; a filter
// without a limit is capped by WithMaxReportRecords. TotalMatching counts
// every match and Truncated reports that Logs does not reach the last one.
func (q *QueryService) Report(ctx context.Context, f Filter) (*Report, error) {
	f = q.scope(ctx, f)
	if f.Limit == 0 {
		f.Limit = q.maxRecords
	}
	records, err := q.store.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}

	summary := summarize(records)
	shown := int64(f.Offset + len(records))
	summary.TotalMatching = shown
	if counter, ok := q.store.(Counter); ok {
		unbounded := f
		unbounded.Limit, unbounded.Offset = 0, 0
		n, err := counter.Count(ctx, unbounded)
		if err != nil {
			return nil, err
		}
		summary.TotalMatching = max(n, shown)
	} else if f.Limit > 0 && len(records) == f.Limit {
		// without a counter a full page is all that can be told
		summary.Truncated = true
	}
	summary.Truncated = summary.Truncated || summary.TotalMatching > shown
	return &Report{Filter: f, Summary: summary, Logs: records}, nil
}

func summarize(records []Record) Summary {
	s := Summary{Total: len(records)}
	actions := make(map[string]int)
	entities := make(map[string]int)
	users := make(map[string]int)

	for i := range records {
		r := &records[i]
		if r.Success {
			s.Successful++
		} else {
			s.Failed++
		}
		actions[string(r.Action)]++
		entities[r.EntityType]++
		users[r.Actor()]++

		t := r.CreatedAt
		if s.First == nil || t.Before(*s.First) {
			s.First = &t
		}
		if s.Last == nil || t.After(*s.Last) {
			s.Last = &t
		}
	}

	s.ActionBreakdown = breakdown(actions)
	s.EntityBreakdown = breakdown(entities)
	s.UserBreakdown = breakdown(users)
	return s
}

// breakdown orders buckets by count, then key, so equal inputs give equal output.
func breakdown(counts map[string]int) []KeyCount {
	out := make([]KeyCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, KeyCount{Key: k, Count: n})
	}
	slices.SortFunc(out, func(a, b KeyCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

// scope pins the filter to the tenant bound to ctx, if any.
func (q *QueryService) scope(ctx context.Context, f Filter) Filter {
	if id := extract(ctx, q.tenantID); id != "" {
		f.TenantID = id
	}
	return f
}
