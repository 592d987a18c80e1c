package sqlite

// Schema is the embedded baseline schema. It is idempotent; column-level
// upgrades for databases created by older releases live in migrate().
const Schema = `
CREATE TABLE IF NOT EXISTS vehicles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	make TEXT NOT NULL,
	model TEXT NOT NULL,
	model_year TEXT,
	odometer INTEGER DEFAULT 0,
	vin TEXT,
	plate TEXT,
	inspection_expiry TEXT,
	oil_change_interval INTEGER DEFAULT 10000
);

CREATE TABLE IF NOT EXISTS service_entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	vehicle_id INTEGER NOT NULL,
	entry_date TEXT NOT NULL,
	category TEXT NOT NULL,
	amount REAL DEFAULT 0,
	odometer INTEGER,
	fuel_volume REAL,
	unit_price REAL,
	station TEXT,
	note TEXT,
	service_type TEXT DEFAULT '',
	attachment_path TEXT DEFAULT '',
	FOREIGN KEY (vehicle_id) REFERENCES vehicles (id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS categories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	icon TEXT DEFAULT '📦',
	color TEXT DEFAULT '#64748b',
	builtin INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS insurance_policies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	vehicle_id INTEGER NOT NULL,
	issue_date TEXT NOT NULL,
	provider TEXT,
	coverage_start TEXT,
	coverage_end TEXT,
	amount REAL DEFAULT 0,
	note TEXT,
	attachment_path TEXT DEFAULT '',
	FOREIGN KEY (vehicle_id) REFERENCES vehicles (id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_entries_vehicle_id ON service_entries (vehicle_id);
CREATE INDEX IF NOT EXISTS idx_entries_date ON service_entries (entry_date);
CREATE INDEX IF NOT EXISTS idx_policies_vehicle_id ON insurance_policies (vehicle_id);
`

// migrate applies column-level upgrades for databases created before the
// column existed. ALTER TABLE ADD COLUMN fails when the column is already
// present, so each step probes first.
func (s *Store) migrate() error {
	steps := []struct {
		probe string
		alter string
	}{
		{
			probe: "SELECT service_type FROM service_entries LIMIT 1",
			alter: "ALTER TABLE service_entries ADD COLUMN service_type TEXT DEFAULT ''",
		},
		{
			probe: "SELECT attachment_path FROM service_entries LIMIT 1",
			alter: "ALTER TABLE service_entries ADD COLUMN attachment_path TEXT DEFAULT ''",
		},
		{
			probe: "SELECT attachment_path FROM insurance_policies LIMIT 1",
			alter: "ALTER TABLE insurance_policies ADD COLUMN attachment_path TEXT DEFAULT ''",
		},
	}

	for _, step := range steps {
		if _, err := s.db.Exec(step.probe); err == nil {
			continue
		}
		if _, err := s.db.Exec(step.alter); err != nil {
			return err
		}
	}
	return nil
}
