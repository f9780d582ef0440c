package config

const (
	// EnvPrefix is passed to envconfig; individual fields carry explicit
	// GUIDELY_ names so the prefix stays empty.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "GUIDELY_DB_DSN"
	EnvDBHost = "GUIDELY_DB_HOST"
	EnvDBUser = "GUIDELY_DB_USER"
	EnvDBName = "GUIDELY_DB_NAME"
)
