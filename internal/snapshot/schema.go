package snapshot

// Schema creates the latest_quotes table.
const Schema = `
CREATE TABLE IF NOT EXISTS latest_quotes (
	symbol         TEXT PRIMARY KEY,
	price          DOUBLE PRECISION NOT NULL,
	change         DOUBLE PRECISION NOT NULL,
	change_percent DOUBLE PRECISION NOT NULL,
	open           DOUBLE PRECISION NOT NULL,
	high           DOUBLE PRECISION NOT NULL,
	low            DOUBLE PRECISION NOT NULL,
	volume         BIGINT NOT NULL,
	ts             BIGINT NOT NULL,
	source         TEXT NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const upsertQuote = `
	INSERT INTO latest_quotes (symbol, price, change, change_percent, open, high, low, volume, ts, source, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
	ON CONFLICT (symbol) DO UPDATE SET
		price = EXCLUDED.price,
		change = EXCLUDED.change,
		change_percent = EXCLUDED.change_percent,
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		volume = EXCLUDED.volume,
		ts = EXCLUDED.ts,
		source = EXCLUDED.source,
		updated_at = now()
	WHERE latest_quotes.ts <= EXCLUDED.ts
`

const selectQuotes = `
	SELECT symbol, price, change, change_percent, open, high, low, volume, ts, source
	FROM latest_quotes
	ORDER BY symbol
`
