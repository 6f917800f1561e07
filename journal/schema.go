package journal

const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	created DATETIME NOT NULL,
	dataset TEXT NOT NULL,
	rule TEXT NOT NULL,
	config BLOB,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	days INTEGER NOT NULL,
	trials INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	n INTEGER NOT NULL,
	mean REAL NOT NULL,
	stddev REAL NOT NULL,
	min REAL NOT NULL,
	p5 REAL NOT NULL,
	p50 REAL NOT NULL,
	p95 REAL NOT NULL,
	max REAL NOT NULL,
	mean_step_stddev REAL NOT NULL,
	tax_paid REAL NOT NULL,
	fees_paid REAL NOT NULL,
	transfers INTEGER NOT NULL,
	liquidations INTEGER NOT NULL,
	notes TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	run_id TEXT NOT NULL,
	day INTEGER NOT NULL,
	date TEXT NOT NULL,
	close REAL NOT NULL,
	signal TEXT NOT NULL,
	event TEXT NOT NULL,
	mode TEXT NOT NULL,
	invested REAL NOT NULL,
	cash REAL NOT NULL,
	total REAL NOT NULL,
	cost_basis REAL NOT NULL,
	realized_gains REAL NOT NULL,
	tax REAL NOT NULL,
	fee REAL NOT NULL,
	tax_paid REAL NOT NULL,
	fees_paid REAL NOT NULL,
	PRIMARY KEY (run_id, day)
);

CREATE TABLE IF NOT EXISTS trials (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	trial_id TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	repeat INTEGER NOT NULL,
	terminal REAL NOT NULL,
	tax_paid REAL NOT NULL,
	fees_paid REAL NOT NULL,
	transfers INTEGER NOT NULL,
	liquidations INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS stats (
	run_id TEXT NOT NULL,
	step INTEGER NOT NULL,
	mean REAL NOT NULL,
	stddev REAL NOT NULL,
	PRIMARY KEY (run_id, step)
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created);
`
