// Package all registers every store backend with the store factory.
// Blank-import it from binaries; config selects which backend actually runs.
package all

import (
	_ "fitsync/internal/store/csvfile"
	_ "fitsync/internal/store/mssql"
	_ "fitsync/internal/store/postgres"
	_ "fitsync/internal/store/sqlite"
)
