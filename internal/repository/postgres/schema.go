package postgres

// schemaSQL creates the products table and its indexes. Every statement is idempotent.
//
// search_vector weights: title A, description B, category C, subcategory D.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS products (
	id             UUID PRIMARY KEY,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	subcategory    TEXT NOT NULL DEFAULT '',
	price          DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (price >= 0),
	stock          INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
	images         TEXT[] NOT NULL DEFAULT '{}',
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	reindex_needed BOOLEAN NOT NULL DEFAULT FALSE,
	search_vector  TSVECTOR GENERATED ALWAYS AS (
		setweight(to_tsvector('english', coalesce(title, '')), 'A') ||
		setweight(to_tsvector('english', coalesce(description, '')), 'B') ||
		setweight(to_tsvector('english', coalesce(category, '')), 'C') ||
		setweight(to_tsvector('english', coalesce(subcategory, '')), 'D')
	) STORED
);

CREATE INDEX IF NOT EXISTS products_search_vector_idx ON products USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS products_created_at_idx ON products (created_at DESC);
CREATE INDEX IF NOT EXISTS products_category_idx ON products (category, subcategory);
CREATE INDEX IF NOT EXISTS products_reindex_needed_idx ON products (reindex_needed) WHERE reindex_needed;
`

// rankWeights maps {D, C, B, A} onto the 1/2/3/5 relevance ratio of
// subcategory/category/description/title.
const rankWeights = `'{0.2, 0.4, 0.6, 1.0}'`
