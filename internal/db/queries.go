package db

const messageColumns = `id, sender, content, sequence_number, created_at, printed, printed_at, claimed_by, claimed_at`

const (
	InsertMessage = `
		INSERT INTO messages (id, sender, content, created_at, printed)
		VALUES (?, ?, ?, ?, 0)
	`

	GetMessageByID = `
		SELECT ` + messageColumns + `
		FROM messages WHERE id = ?
	`

	ListRecentMessages = `
		SELECT ` + messageColumns + `
		FROM messages
		ORDER BY created_at DESC, sequence_number DESC
		LIMIT ?
	`

	FindOldestUnprinted = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE printed = 0
		ORDER BY created_at ASC, sequence_number ASC
		LIMIT 1
	`

	FindOldestClaimable = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE printed = 0
		  AND (claimed_by IS NULL OR claimed_by = ? OR claimed_at < ?)
		ORDER BY created_at ASC, sequence_number ASC
		LIMIT 1
	`

	ClaimMessage = `
		UPDATE messages SET claimed_by = ?, claimed_at = ?
		WHERE id = ? AND printed = 0
		  AND (claimed_by IS NULL OR claimed_by = ? OR claimed_at < ?)
	`

	MarkMessagePrinted = `
		UPDATE messages SET printed = 1, printed_at = ?
		WHERE id = ? AND printed = 0
	`

	MessageExists = `SELECT 1 FROM messages WHERE id = ?`
)

const (
	PgInsertMessage = `
		INSERT INTO messages (id, sender, content, created_at, printed)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING sequence_number
	`

	PgGetMessageByID = `
		SELECT ` + messageColumns + `
		FROM messages WHERE id = $1
	`

	PgListRecentMessages = `
		SELECT ` + messageColumns + `
		FROM messages
		ORDER BY created_at DESC, sequence_number DESC
		LIMIT $1
	`

	PgFindOldestUnprinted = `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE printed = FALSE
		ORDER BY created_at ASC, sequence_number ASC
		LIMIT 1
	`

	PgClaimNext = `
		UPDATE messages SET claimed_by = $1, claimed_at = $2
		WHERE sequence_number = (
			SELECT sequence_number FROM messages
			WHERE printed = FALSE
			  AND (claimed_by IS NULL OR claimed_by = $1 OR claimed_at < $3)
			ORDER BY created_at ASC, sequence_number ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + messageColumns

	PgMarkMessagePrinted = `
		UPDATE messages SET printed = TRUE, printed_at = $1
		WHERE id = $2 AND printed = FALSE
	`

	PgMessageExists = `SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1)`
)

const (
	CreateMigrationsTable = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`

	GetAppliedMigrations = `SELECT version FROM schema_migrations`

	RecordMigration = `INSERT INTO schema_migrations (version) VALUES (?)`

	PgRecordMigration = `INSERT INTO schema_migrations (version) VALUES ($1)`
)
