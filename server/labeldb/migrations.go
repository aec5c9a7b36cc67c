package labeldb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	// We don't use "WITHOUT ROWID", because every row carries a potentially large document blob
	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE revision(
			id INTEGER PRIMARY KEY,
			time INT NOT NULL,
			hash BLOB NOT NULL,
			message TEXT,
			video TEXT,
			tracks INT NOT NULL,
			boxes INT NOT NULL,
			size INT NOT NULL,
			document BLOB NOT NULL
		);

		CREATE INDEX idx_revision_hash ON revision (hash);
	`))

	return migs
}
