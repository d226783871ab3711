// Package database provides the SQLite connection and schema migrations
// behind state persistence.
//
// Migrations are plain SQL files passed in as an fs.FS; the service
// embeds its own from the top-level migrations package:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
