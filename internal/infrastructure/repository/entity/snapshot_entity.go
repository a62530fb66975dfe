package entity

import (
	"time"

	"storepulse-shopify-core/internal/domain"
)

// MongoSnapshotImageDoc represents a catalog image embedded in a snapshot
// document
type MongoSnapshotImageDoc struct {
	ID       int64  `bson:"id"`
	Src      string `bson:"src"`
	Alt      string `bson:"alt,omitempty"`
	Position int    `bson:"position"`
}

// MongoSnapshotVariantDoc represents a product variant embedded in a
// snapshot document
type MongoSnapshotVariantDoc struct {
	ID             int64   `bson:"id"`
	Title          string  `bson:"title"`
	SKU            string  `bson:"sku,omitempty"`
	Price          float64 `bson:"price"`
	CompareAtPrice float64 `bson:"compareAtPrice,omitempty"`
	InventoryQty   int     `bson:"inventoryQty"`
	Position       int     `bson:"position"`
}

// MongoSnapshotDoc represents a normalized product snapshot in MongoDB.
// The document id is storeID:productID so upserts replace in place.
type MongoSnapshotDoc struct {
	ID             string                    `bson:"_id"`
	StoreID        string                    `bson:"storeId"`
	ProductID      string                    `bson:"productId"`
	Title          string                    `bson:"title"`
	Description    string                    `bson:"description,omitempty"`
	Vendor         string                    `bson:"vendor,omitempty"`
	Type           string                    `bson:"type,omitempty"`
	Tags           []string                  `bson:"tags"`
	Status         string                    `bson:"status"`
	Images         []MongoSnapshotImageDoc   `bson:"images"`
	Variants       []MongoSnapshotVariantDoc `bson:"variants"`
	SEOTitle       string                    `bson:"seoTitle,omitempty"`
	SEODescription string                    `bson:"seoDescription,omitempty"`
	LastSyncedAt   time.Time                 `bson:"lastSyncedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoSnapshotDoc) ToDomain() *domain.ProductSnapshot {
	snap := &domain.ProductSnapshot{
		ID:          d.ID,
		StoreID:     d.StoreID,
		ProductID:   d.ProductID,
		Title:       d.Title,
		Description: d.Description,
		Vendor:      d.Vendor,
		Type:        d.Type,
		Tags:        d.Tags,
		Status:      d.Status,
		Images:      make([]domain.ProductImage, 0, len(d.Images)),
		Variants:    make([]domain.ProductVariant, 0, len(d.Variants)),
		SEO: domain.ProductSEO{
			Title:       d.SEOTitle,
			Description: d.SEODescription,
		},
		LastSyncedAt: d.LastSyncedAt,
	}

	for _, img := range d.Images {
		snap.Images = append(snap.Images, domain.ProductImage{
			ID:       img.ID,
			Src:      img.Src,
			Alt:      img.Alt,
			Position: img.Position,
		})
	}
	for _, v := range d.Variants {
		snap.Variants = append(snap.Variants, domain.ProductVariant{
			ID:             v.ID,
			Title:          v.Title,
			SKU:            v.SKU,
			Price:          v.Price,
			CompareAtPrice: v.CompareAtPrice,
			InventoryQty:   v.InventoryQty,
			Position:       v.Position,
		})
	}

	return snap
}

// MongoSnapshotDocFromDomain converts a domain entity to a MongoDB document
func MongoSnapshotDocFromDomain(snap *domain.ProductSnapshot) *MongoSnapshotDoc {
	doc := &MongoSnapshotDoc{
		ID:             snap.ID,
		StoreID:        snap.StoreID,
		ProductID:      snap.ProductID,
		Title:          snap.Title,
		Description:    snap.Description,
		Vendor:         snap.Vendor,
		Type:           snap.Type,
		Tags:           snap.Tags,
		Status:         snap.Status,
		Images:         make([]MongoSnapshotImageDoc, 0, len(snap.Images)),
		Variants:       make([]MongoSnapshotVariantDoc, 0, len(snap.Variants)),
		SEOTitle:       snap.SEO.Title,
		SEODescription: snap.SEO.Description,
		LastSyncedAt:   snap.LastSyncedAt,
	}

	for _, img := range snap.Images {
		doc.Images = append(doc.Images, MongoSnapshotImageDoc{
			ID:       img.ID,
			Src:      img.Src,
			Alt:      img.Alt,
			Position: img.Position,
		})
	}
	for _, v := range snap.Variants {
		doc.Variants = append(doc.Variants, MongoSnapshotVariantDoc{
			ID:             v.ID,
			Title:          v.Title,
			SKU:            v.SKU,
			Price:          v.Price,
			CompareAtPrice: v.CompareAtPrice,
			InventoryQty:   v.InventoryQty,
			Position:       v.Position,
		})
	}

	return doc
}
