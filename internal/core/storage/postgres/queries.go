package postgres

// SQL queries for document storage operations

const (
	// serverTimestamps expands the text[] of server-timestamp keys in $4 into
	// a jsonb object stamped with the database clock.
	serverTimestamps = `COALESCE((SELECT jsonb_object_agg(k, to_jsonb(now())) FROM unnest($4::text[]) AS k), '{}'::jsonb)`

	queryGetDocument = `
		SELECT data
		FROM documents
		WHERE collection = $1 AND id = $2
	`

	// querySetDocument replaces the whole document, creating it if needed.
	querySetDocument = `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb || ` + serverTimestamps + `)
		ON CONFLICT (collection, id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()
	`

	// queryCreateDocument inserts only when the id is free. Zero rows affected
	// means the document already exists.
	queryCreateDocument = `
		INSERT INTO documents (collection, id, data)
		VALUES ($1, $2, $3::jsonb || ` + serverTimestamps + `)
		ON CONFLICT (collection, id) DO NOTHING
	`

	// queryUpdateDocument merges top-level fields into an existing document.
	// Zero rows affected means the document does not exist.
	queryUpdateDocument = `
		UPDATE documents
		SET data = data || $3::jsonb || ` + serverTimestamps + `, updated_at = now()
		WHERE collection = $1 AND id = $2
	`

	// queryLatestDocument returns the document with the greatest value at key
	// $2. Documents without the key are not eligible; ties break on id.
	queryLatestDocument = `
		SELECT id, data
		FROM documents
		WHERE collection = $1 AND data ? $2
		ORDER BY data -> $2 DESC, id DESC
		LIMIT 1
	`

	// queryListDocumentIDs lists a collection for the initial watch batch.
	queryListDocumentIDs = `
		SELECT id
		FROM documents
		WHERE collection = $1
		ORDER BY id ASC
	`
)
