// Package all links every storage backend into the binary. Import it for its
// side effects:
//
//	import _ "rowquery/internal/storage/all"
package all

import (
	_ "rowquery/internal/storage/mssql"
	_ "rowquery/internal/storage/mysql"
	_ "rowquery/internal/storage/postgres"
	_ "rowquery/internal/storage/sqlite"
)
