package config

type AppConfig struct {
	Workdir   string `envconfig:"WORK_DIR"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"4"`
	LogToFile bool   `envconfig:"LOG_TO_FILE" default:"true"`

	// bitcoin, testnet, signet or regtest
	Network string `envconfig:"NETWORK" default:"regtest"`

	// Trader-side sqlite database and the coordinator HTTP endpoint the
	// orderbook client posts new orders to.
	DatabaseUri         string `envconfig:"DATABASE_URI" default:"10101.db"`
	CoordinatorEndpoint string `envconfig:"COORDINATOR_ENDPOINT" default:"http://localhost:8000"`

	// Coordinator-side Postgres database.
	CoordinatorDatabaseUri string `envconfig:"COORDINATOR_DATABASE_URI"`

	// Oracle used to attest trade settlement. Injected, never hard-coded.
	OraclePubkey string `envconfig:"ORACLE_PUBKEY"`

	// Lightning node backend.
	LNDAddress      string `envconfig:"LND_ADDRESS"`
	LNDCertFile     string `envconfig:"LND_CERT_FILE"`
	LNDMacaroonFile string `envconfig:"LND_MACAROON_FILE"`

	// Hex-encoded secp256k1 private key used to sign invoices.
	NodeKey string `envconfig:"NODE_KEY"`
}
