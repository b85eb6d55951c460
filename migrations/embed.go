// Package migrations bundles the SQL schema so binaries don't depend on the working directory.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
