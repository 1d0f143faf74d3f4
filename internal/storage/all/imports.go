// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories and DDL bootstrappers with the
// storage package. After importing it the following storage kinds are
// available at runtime:
//
//   - "postgres" (savload/internal/storage/postgres)
//   - "mssql"    (savload/internal/storage/mssql)
//   - "sqlite"   (savload/internal/storage/sqlite)
//   - "mysql"    (savload/internal/storage/mysql)
//
// Binaries that need only a subset of backends can import those packages
// directly instead.
package all

import (
	_ "savload/internal/storage/mssql"
	_ "savload/internal/storage/mysql"
	_ "savload/internal/storage/postgres"
	_ "savload/internal/storage/sqlite"
)
