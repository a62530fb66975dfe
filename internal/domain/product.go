package domain

import (
	"strings"
	"time"
)

// ProductImage is one catalog image in display order.
type ProductImage struct {
	ID       int64  `json:"id"`
	Src      string `json:"src"`
	Alt      string `json:"alt,omitempty"`
	Position int    `json:"position"`
}

// ProductVariant is one purchasable variant in display order.
type ProductVariant struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	SKU            string  `json:"sku,omitempty"`
	Price          float64 `json:"price"`
	CompareAtPrice float64 `json:"compare_at_price,omitempty"`
	InventoryQty   int     `json:"inventory_qty"`
	Position       int     `json:"position"`
}

// ProductSEO holds the search listing fields.
type ProductSEO struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// ProductSnapshot is the current normalized view of one catalog item.
// It is replaced (not versioned) on each sync and is only ever written by
// the sync orchestrator via upsert.
type ProductSnapshot struct {
	// ID is the document key, storeID:productID, so two stores can carry
	// the same platform product id.
	ID           string           `json:"id"`
	StoreID      string           `json:"store_id"`
	ProductID    string           `json:"product_id"`
	Title        string           `json:"title"`
	Description  string           `json:"description,omitempty"`
	Vendor       string           `json:"vendor,omitempty"`
	Type         string           `json:"type,omitempty"`
	Tags         []string         `json:"tags"`
	Status       string           `json:"status"`
	Images       []ProductImage   `json:"images"`
	Variants     []ProductVariant `json:"variants"`
	SEO          ProductSEO       `json:"seo"`
	LastSyncedAt time.Time        `json:"last_synced_at"`
}

// SnapshotKey builds the document key for one product of one store.
func SnapshotKey(storeID, productID string) string {
	return storeID + ":" + productID
}

// SplitTags normalizes the platform's comma-separated tag string into a
// trimmed, de-duplicated set preserving first-seen order.
func SplitTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	seen := make(map[string]struct{})
	tags := []string{}
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		tags = append(tags, t)
	}
	return tags
}
