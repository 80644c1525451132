package instance

// Database driver imports for side-effect registration with database/sql.
// OpenSQL accepts the driver names "sqlite", "postgres" and "mysql".

import (
	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver
)
