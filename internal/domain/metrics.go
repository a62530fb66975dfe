package domain

import "time"

// FunnelCounts are the raw per-window aggregates the warehouse returns for
// one product or one store.
type FunnelCounts struct {
	Views          int64
	AddToCarts     int64
	Purchases      int64
	Revenue        float64
	UnitsSold      int64
	UniqueUsers    int64
	UniqueSessions int64
}

// ProductMetrics is the derived per-product report over one window, with
// period-over-period trends against the immediately preceding window of
// equal length.
type ProductMetrics struct {
	StoreID    string    `json:"store_id"`
	ProductID  string    `json:"product_id"`
	WindowDays int       `json:"window_days"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`

	Views          int64   `json:"views"`
	AddToCarts     int64   `json:"add_to_carts"`
	Purchases      int64   `json:"purchases"`
	Revenue        float64 `json:"revenue"`
	UnitsSold      int64   `json:"units_sold"`
	UniqueUsers    int64   `json:"unique_users"`
	UniqueSessions int64   `json:"unique_sessions"`

	ViewToCartRate     float64 `json:"view_to_cart_rate"`
	CartToPurchaseRate float64 `json:"cart_to_purchase_rate"`
	ConversionRate     float64 `json:"conversion_rate"`
	AvgOrderValue      float64 `json:"avg_order_value"`

	ViewsTrend     float64 `json:"views_trend"`
	PurchasesTrend float64 `json:"purchases_trend"`
	RevenueTrend   float64 `json:"revenue_trend"`
}

// RankedProduct is one row of the top-products-by-revenue list.
type RankedProduct struct {
	ProductID string  `json:"product_id"`
	Title     string  `json:"title"`
	Revenue   float64 `json:"revenue"`
	UnitsSold int64   `json:"units_sold"`
	Purchases int64   `json:"purchases"`
}

// DailyRevenue is one calendar-day revenue bucket, ordered ascending.
type DailyRevenue struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
	Orders  int64   `json:"orders"`
}

// StoreMetrics is the derived store-wide report over one window.
type StoreMetrics struct {
	StoreID    string    `json:"store_id"`
	WindowDays int       `json:"window_days"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`

	Views          int64   `json:"views"`
	AddToCarts     int64   `json:"add_to_carts"`
	Purchases      int64   `json:"purchases"`
	Revenue        float64 `json:"revenue"`
	UnitsSold      int64   `json:"units_sold"`
	UniqueUsers    int64   `json:"unique_users"`
	UniqueSessions int64   `json:"unique_sessions"`

	ConversionRate float64 `json:"conversion_rate"`
	AvgOrderValue  float64 `json:"avg_order_value"`

	ViewsTrend     float64 `json:"views_trend"`
	PurchasesTrend float64 `json:"purchases_trend"`
	RevenueTrend   float64 `json:"revenue_trend"`

	TopProducts  []RankedProduct `json:"top_products"`
	RevenueByDay []DailyRevenue  `json:"revenue_by_day"`
}
