package repository

import "github.com/jmoiron/sqlx"

// rebind converts ?-style placeholders to whatever the driver behind
// ext expects. Queries in this package are written with ? throughout.
func rebind(ext sqlx.Ext, query string) string {
	return sqlx.Rebind(sqlx.BindType(ext.DriverName()), query)
}

func isPostgres(ext sqlx.Ext) bool {
	return ext.DriverName() == "postgres"
}
