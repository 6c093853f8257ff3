package service

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"frozen-pos/internal/model"
	"frozen-pos/internal/repository"
	"frozen-pos/pkg/apperror"
)

const (
	maxTrendDays       = 366
	defaultTopProducts = 5
	maxTopProducts     = 100
	dayLayout          = "2006-01-02"
)

type SalesSummary struct {
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	Orders        int             `json:"orders"`
	Revenue       decimal.Decimal `json:"revenue"`
	Cost          decimal.Decimal `json:"cost"`
	GrossProfit   decimal.Decimal `json:"gross_profit"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
}

type TrendPoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

type TopProduct struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// StockMovementData untuk chart data
type StockMovementData struct {
	Date     string `json:"date"`
	Inbound  int    `json:"inbound"`
	Outbound int    `json:"outbound"`
}

// DashboardStats untuk overview stats
type DashboardStats struct {
	TotalProducts    int64           `json:"total_products"`
	LowStockCount    int64           `json:"low_stock_count"`
	StockValuation   decimal.Decimal `json:"stock_valuation"`
	ExpiringSoon     []model.Product `json:"expiring_soon"`
	TodayRevenue     decimal.Decimal `json:"today_revenue"`
	TodayOrders      int             `json:"today_orders"`
	LowStockBelow    int             `json:"low_stock_below"`
	ExpiryWindowDays int             `json:"expiry_window_days"`
}

// Mismatch is a product whose stock disagrees with its log.
type Mismatch struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	LogSum    int    `json:"log_sum"`
	Drift     int    `json:"drift"`
}

type ReportOptions struct {
	Location          *time.Location
	LowStockThreshold int
	ExpiryWarningDays int
}

type ReportService interface {
	Summary(ctx context.Context, from, to time.Time) (*SalesSummary, error)
	SalesTrend(ctx context.Context, days int) ([]TrendPoint, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error)
	StockMovement(ctx context.Context, days int) ([]StockMovementData, error)
	Dashboard(ctx context.Context) (*DashboardStats, error)
	Reconcile(ctx context.Context) ([]Mismatch, error)
}

type reportService struct {
	repo repository.ReportRepository
	opts ReportOptions
	now  func() time.Time
}

func NewReportService(repo repository.ReportRepository, opts ReportOptions) ReportService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &reportService{repo: repo, opts: opts, now: time.Now}
}

func (s *reportService) Summary(ctx context.Context, from, to time.Time) (*SalesSummary, error) {
	ctx, span := tracer.Start(ctx, "report.summary")
	defer span.End()

	if !to.After(from) {
		return nil, apperror.Validation("report range end must be after start")
	}

	var (
		orders []model.Order
		lines  []repository.SoldLine
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		orders, err = s.repo.CompletedOrders(gctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		lines, err = s.repo.SoldLines(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &SalesSummary{From: from, To: to, Orders: len(orders), Revenue: decimal.Zero, Cost: decimal.Zero, AverageTicket: decimal.Zero}
	for _, o := range orders {
		out.Revenue = out.Revenue.Add(o.TotalAmount)
	}
	for _, l := range lines {
		out.Cost = out.Cost.Add(l.BuyPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	out.Cost = out.Cost.Round(2)
	out.GrossProfit = out.Revenue.Sub(out.Cost)
	if out.Orders > 0 {
		out.AverageTicket = out.Revenue.Div(decimal.NewFromInt(int64(out.Orders))).Round(2)
	}
	return out, nil
}

func (s *reportService) SalesTrend(ctx context.Context, days int) ([]TrendPoint, error) {
	ctx, span := tracer.Start(ctx, "report.sales_trend")
	defer span.End()

	from, to, keys, err := s.window(days)
	if err != nil {
		return nil, err
	}
	orders, err := s.repo.CompletedOrders(ctx, from, to)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*TrendPoint, len(keys))
	out := make([]TrendPoint, len(keys))
	for i, k := range keys {
		out[i] = TrendPoint{Date: k, Revenue: decimal.Zero}
		buckets[k] = &out[i]
	}
	for _, o := range orders {
		if b, ok := buckets[s.day(o.OrderDate)]; ok {
			b.Revenue = b.Revenue.Add(o.TotalAmount)
			b.Orders++
		}
	}
	return out, nil
}

func (s *reportService) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]TopProduct, error) {
	ctx, span := tracer.Start(ctx, "report.top_products")
	defer span.End()

	if !to.After(from) {
		return nil, apperror.Validation("report range end must be after start")
	}
	if limit <= 0 {
		limit = defaultTopProducts
	}
	if limit > maxTopProducts {
		limit = maxTopProducts
	}

	lines, err := s.repo.SoldLines(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byProduct := make(map[uint]*TopProduct)
	for _, l := range lines {
		tp, ok := byProduct[l.ProductID]
		if !ok {
			tp = &TopProduct{ProductID: l.ProductID, Name: l.ProductName, Revenue: decimal.Zero}
			byProduct[l.ProductID] = tp
		}
		tp.Quantity += l.Quantity
		tp.Revenue = tp.Revenue.Add(l.Subtotal)
	}

	out := make([]TopProduct, 0, len(byProduct))
	for _, tp := range byProduct {
		out = append(out, *tp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *reportService) StockMovement(ctx context.Context, days int) ([]StockMovementData, error) {
	ctx, span := tracer.Start(ctx, "report.stock_movement")
	defer span.End()

	from, to, keys, err := s.window(days)
	if err != nil {
		return nil, err
	}
	logs, err := s.repo.StockLogs(ctx, from, to)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]*StockMovementData, len(keys))
	out := make([]StockMovementData, len(keys))
	for i, k := range keys {
		out[i] = StockMovementData{Date: k}
		buckets[k] = &out[i]
	}
	for _, l := range logs {
		b, ok := buckets[s.day(l.CreatedAt)]
		if !ok {
			continue
		}
		if l.Quantity > 0 {
			b.Inbound += l.Quantity
		} else {
			b.Outbound += -l.Quantity
		}
	}
	return out, nil
}

// Dashboard runs its independent queries concurrently.
func (s *reportService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	ctx, span := tracer.Start(ctx, "report.dashboard")
	defer span.End()

	now := s.now().In(s.opts.Location)
	todayStart := startOfDay(now)
	todayEnd := todayStart.AddDate(0, 0, 1)

	stats := &DashboardStats{
		LowStockBelow:    s.opts.LowStockThreshold,
		ExpiryWindowDays: s.opts.ExpiryWarningDays,
		StockValuation:   decimal.Zero,
		TodayRevenue:     decimal.Zero,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalProducts, err = s.repo.CountProducts(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.LowStockCount, err = s.repo.CountLowStock(gctx, s.opts.LowStockThreshold)
		return err
	})
	g.Go(func() error {
		products, err := s.repo.ActiveProducts(gctx)
		if err != nil {
			return err
		}
		valuation := decimal.Zero
		for _, p := range products {
			valuation = valuation.Add(p.BuyPrice.Mul(decimal.NewFromInt(int64(p.Stock))))
		}
		stats.StockValuation = valuation.Round(2)
		return nil
	})
	g.Go(func() (err error) {
		stats.ExpiringSoon, err = s.repo.ExpiringProducts(gctx, now.AddDate(0, 0, s.opts.ExpiryWarningDays))
		return err
	})
	g.Go(func() error {
		orders, err := s.repo.CompletedOrders(gctx, todayStart, todayEnd)
		if err != nil {
			return err
		}
		revenue := decimal.Zero
		for _, o := range orders {
			revenue = revenue.Add(o.TotalAmount)
		}
		stats.TodayRevenue, stats.TodayOrders = revenue, len(orders)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if stats.ExpiringSoon == nil {
		stats.ExpiringSoon = []model.Product{}
	}
	return stats, nil
}

// Reconcile lists products whose stock differs from the sum of their log.
// It reports drift and never repairs it.
func (s *reportService) Reconcile(ctx context.Context) ([]Mismatch, error) {
	ctx, span := tracer.Start(ctx, "report.reconcile")
	defer span.End()

	rows, err := s.repo.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	out := []Mismatch{}
	for _, r := range rows {
		if r.Stock != r.LogSum {
			out = append(out, Mismatch{
				ProductID: r.ProductID,
				Name:      r.Name,
				Stock:     r.Stock,
				LogSum:    r.LogSum,
				Drift:     r.Stock - r.LogSum,
			})
		}
	}
	return out, nil
}

// window returns [from, to) covering the last n local days including today,
// and the day keys in order.
func (s *reportService) window(days int) (time.Time, time.Time, []string, error) {
	if days < 1 || days > maxTrendDays {
		return time.Time{}, time.Time{}, nil, apperror.Validation("days must be between 1 and %d", maxTrendDays)
	}
	today := startOfDay(s.now().In(s.opts.Location))
	from := today.AddDate(0, 0, -(days - 1))
	to := today.AddDate(0, 0, 1)

	keys := make([]string, 0, days)
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		keys = append(keys, d.Format(dayLayout))
	}
	return from, to, keys, nil
}

func (s *reportService) day(t time.Time) string {
	return t.In(s.opts.Location).Format(dayLayout)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
