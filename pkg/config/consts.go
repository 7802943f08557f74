package config

const (
	// EnvPrefix scopes every environment variable this service reads.
	EnvPrefix = "PERSONAPATH"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PERSONAPATH_DB_DSN"
	EnvDBHost = "PERSONAPATH_DB_HOST"
	EnvDBUser = "PERSONAPATH_DB_USER"
	EnvDBName = "PERSONAPATH_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
