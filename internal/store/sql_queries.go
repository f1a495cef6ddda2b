package store

const (
	upsertBlob = `
		INSERT INTO blobs (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at;`

	getBlob = `
		SELECT value
		FROM blobs
		WHERE key = $1;`

	deleteBlob = `
		DELETE FROM blobs
		WHERE key = $1;`
)
