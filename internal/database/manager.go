package database

// Manager is the entrypoint for database access across the service.
// It exposes only the database package API (no raw *sql.DB).
type Manager struct {
	*db
}

func newManager(db *db) *Manager {
	return &Manager{db: db}
}
