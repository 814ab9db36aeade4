package db

import (
	"github.com/jinzhu/gorm"
	"gopkg.in/gormigrate.v1"
)

var migrationInitSchema = gormigrate.Migration{
	ID: "202401121430",
	Migrate: func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			User{},
			Artist{},
			Track{},
			Setting{},
		).
			Error
	},
}

// artist lookups and the uniqueness guarantee are both case-insensitive.
// two racing uploads can both miss the existence check, this index makes
// sure only one of the inserts lands
var migrationArtistNameNoCase = gormigrate.Migration{
	ID: "202401121431",
	Migrate: func(tx *gorm.DB) error {
		return tx.Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS idx_artists_name_no_case
			ON artists (name COLLATE NOCASE);`).
			Error
	},
}
