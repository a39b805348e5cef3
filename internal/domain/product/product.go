// Package product holds the catalog product aggregate.
package product

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/talk2shop/internal/domain"
)

// Field limits.
const (
	MaxTitleLength       = 512
	MaxDescriptionLength = 16384
	MaxCategoryLength    = 128
	MaxImages            = 32
)

// Fields are the mutable attributes of a product.
type Fields struct {
	Title       string
	Description string
	Category    string
	Subcategory string
	Price       float64
	Stock       int
	Images      []string
}

// Product is the catalog aggregate. The id is immutable and joins the catalog with the vector index.
type Product struct {
	id            string
	fields        Fields
	createdAt     time.Time
	updatedAt     time.Time
	reindexNeeded bool
}

// New validates fields and creates a product. An empty id gets a fresh UUID.
func New(id string, f Fields, now time.Time) (Product, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if err := validateID(id); err != nil {
		return Product{}, err
	}
	f, err := normalize(f)
	if err != nil {
		return Product{}, err
	}
	now = now.UTC().Truncate(time.Millisecond)
	return Product{id: id, fields: f, createdAt: now, updatedAt: now}, nil
}

// Restore creates a Product without validation (storage hydration).
func Restore(id string, f Fields, createdAt, updatedAt time.Time, reindexNeeded bool) Product {
	return Product{
		id:            id,
		fields:        f,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
		reindexNeeded: reindexNeeded,
	}
}

// ID returns the product identifier.
func (p Product) ID() string { return p.id }

// Title returns the product title.
func (p Product) Title() string { return p.fields.Title }

// Description returns the product description.
func (p Product) Description() string { return p.fields.Description }

// Category returns the product category.
func (p Product) Category() string { return p.fields.Category }

// Subcategory returns the product subcategory.
func (p Product) Subcategory() string { return p.fields.Subcategory }

// Price returns the product price.
func (p Product) Price() float64 { return p.fields.Price }

// Stock returns the units in stock.
func (p Product) Stock() int { return p.fields.Stock }

// Images returns a copy of the ordered image URLs.
func (p Product) Images() []string { return cloneStrings(p.fields.Images) }

// Fields returns a copy of the mutable attributes.
func (p Product) Fields() Fields {
	f := p.fields
	f.Images = cloneStrings(f.Images)
	return f
}

// CreatedAt returns the creation time.
func (p Product) CreatedAt() time.Time { return p.createdAt }

// UpdatedAt returns the last modification time.
func (p Product) UpdatedAt() time.Time { return p.updatedAt }

// ReindexNeeded reports whether the vector index is known to be stale for this product.
func (p Product) ReindexNeeded() bool { return p.reindexNeeded }

// EmbeddingText is the text the vector index embeds for this product.
func (p Product) EmbeddingText() string {
	parts := make([]string, 0, 4)
	for _, s := range []string{p.fields.Title, p.fields.Description, p.fields.Category, p.fields.Subcategory} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Apply returns a copy with the patch applied and the update time moved to now.
func (p Product) Apply(patch Patch, now time.Time) (Product, error) {
	f := p.Fields()
	if patch.Title != nil {
		f.Title = *patch.Title
	}
	if patch.Description != nil {
		f.Description = *patch.Description
	}
	if patch.Category != nil {
		f.Category = *patch.Category
	}
	if patch.Subcategory != nil {
		f.Subcategory = *patch.Subcategory
	}
	if patch.Price != nil {
		f.Price = *patch.Price
	}
	if patch.Stock != nil {
		f.Stock = *patch.Stock
	}
	if patch.Images != nil {
		f.Images = *patch.Images
	}

	f, err := normalize(f)
	if err != nil {
		return Product{}, err
	}
	return Product{
		id:            p.id,
		fields:        f,
		createdAt:     p.createdAt,
		updatedAt:     now.UTC().Truncate(time.Millisecond),
		reindexNeeded: p.reindexNeeded,
	}, nil
}

// WithReindexNeeded returns a copy with the marker set to v.
func (p Product) WithReindexNeeded(v bool) Product {
	p.reindexNeeded = v
	return p
}

// Patch is a partial update. Nil fields are unchanged.
type Patch struct {
	Title       *string
	Description *string
	Category    *string
	Subcategory *string
	Price       *float64
	Stock       *int
	Images      *[]string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil && p.Subcategory == nil &&
		p.Price == nil && p.Stock == nil && p.Images == nil
}

// TouchesEmbedding reports whether the patch changes the embedded text.
func (p Patch) TouchesEmbedding() bool {
	return p.Title != nil || p.Description != nil || p.Category != nil || p.Subcategory != nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return invalid("id must be a UUID")
	}
	return nil
}

func normalize(f Fields) (Fields, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Category = strings.TrimSpace(f.Category)
	f.Subcategory = strings.TrimSpace(f.Subcategory)

	switch {
	case f.Title == "":
		return Fields{}, invalid("title is required")
	case len(f.Title) > MaxTitleLength:
		return Fields{}, invalid("title too long (max %d)", MaxTitleLength)
	case len(f.Description) > MaxDescriptionLength:
		return Fields{}, invalid("description too long (max %d)", MaxDescriptionLength)
	case len(f.Category) > MaxCategoryLength || len(f.Subcategory) > MaxCategoryLength:
		return Fields{}, invalid("category too long (max %d)", MaxCategoryLength)
	case math.IsNaN(f.Price) || math.IsInf(f.Price, 0) || f.Price < 0:
		return Fields{}, invalid("price must be a non-negative number")
	case f.Stock < 0:
		return Fields{}, invalid("stock must be non-negative")
	case len(f.Images) > MaxImages:
		return Fields{}, invalid("too many images (max %d)", MaxImages)
	}

	images := make([]string, 0, len(f.Images))
	for _, img := range f.Images {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	f.Images = images
	return f, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidProduct, fmt.Sprintf(format, args...))
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
