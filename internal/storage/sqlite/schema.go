package sqlite

// Schema defines the SQLite database structure
const Schema = `
CREATE TABLE IF NOT EXISTS positions (
	position_id INTEGER PRIMARY KEY,
	state TEXT NOT NULL UNIQUE,
	turn TEXT NOT NULL CHECK(turn IN ('w', 'b'))
);

CREATE TABLE IF NOT EXISTS openings (
	opening_id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	color TEXT NOT NULL CHECK(color IN ('w', 'b')),
	UNIQUE(name, color)
);

CREATE TABLE IF NOT EXISTS moves (
	move_id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id INTEGER NOT NULL,
	dest_id INTEGER NOT NULL,
	notation TEXT NOT NULL,
	color TEXT NOT NULL CHECK(color IN ('w', 'b')),
	difficulty REAL NOT NULL DEFAULT 0.3,
	last_reviewed_utc DATETIME,
	interval_days REAL NOT NULL DEFAULT 3,
	FOREIGN KEY (source_id) REFERENCES positions(position_id),
	FOREIGN KEY (dest_id) REFERENCES positions(position_id),
	UNIQUE(source_id, notation)
);

CREATE TABLE IF NOT EXISTS move_openings (
	move_id INTEGER NOT NULL,
	opening_id INTEGER NOT NULL,
	PRIMARY KEY (move_id, opening_id),
	FOREIGN KEY (move_id) REFERENCES moves(move_id) ON DELETE CASCADE,
	FOREIGN KEY (opening_id) REFERENCES openings(opening_id)
);

CREATE TABLE IF NOT EXISTS review_log (
	review_id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id INTEGER NOT NULL,
	notation TEXT NOT NULL,
	correct INTEGER NOT NULL,
	difficulty REAL NOT NULL,
	interval_days REAL NOT NULL,
	reviewed_utc DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_moves_dest_id ON moves(dest_id);
CREATE INDEX IF NOT EXISTS idx_move_openings_opening_id ON move_openings(opening_id);
CREATE INDEX IF NOT EXISTS idx_review_log_reviewed ON review_log(reviewed_utc);
`
