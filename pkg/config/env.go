package config

const (
	EnvPrefix = "PACKFINDERZ"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "PACKFINDERZ_APP_ENV"
	EnvPort        = "PACKFINDERZ_APP_PORT"
	EnvLogLevel    = "PACKFINDERZ_LOG_LEVEL"
	EnvServiceKind = "PACKFINDERZ_SERVICE_KIND"

	EnvDBDSN  = "PACKFINDERZ_DB_DSN"
	EnvDBHost = "PACKFINDERZ_DB_HOST"
	EnvDBPort = "PACKFINDERZ_DB_PORT"
	EnvDBUser = "PACKFINDERZ_DB_USER"
	EnvDBPass = "PACKFINDERZ_DB_PASSWORD"
	EnvDBName = "PACKFINDERZ_DB_NAME"

	EnvRedisURL = "PACKFINDERZ_REDIS_URL"

	EnvJWTSecret = "PACKFINDERZ_JWT_SECRET"
	EnvJWTIssuer = "PACKFINDERZ_JWT_ISSUER"

	EnvPubSubPayoutsTopic = "PACKFINDERZ_PUBSUB_PAYOUTS_TOPIC"
	EnvPubSubGatewayTopic = "PACKFINDERZ_PUBSUB_GATEWAY_TOPIC"

	EnvPayoutDefaultCommission = "PACKFINDERZ_PAYOUT_DEFAULT_COMMISSION_RATE"
	EnvPayoutTierRates         = "PACKFINDERZ_PAYOUT_TIER_RATES"
	EnvPayoutCommissionGSTRate = "PACKFINDERZ_PAYOUT_COMMISSION_GST_RATE"
	EnvPayoutTDSRate           = "PACKFINDERZ_PAYOUT_TDS_RATE"
	EnvPayoutTDSRateNoPAN      = "PACKFINDERZ_PAYOUT_TDS_RATE_NO_PAN"
	EnvPayoutReturnFee         = "PACKFINDERZ_PAYOUT_RETURN_FEE"
	EnvPayoutReturnWindowDays  = "PACKFINDERZ_PAYOUT_RETURN_WINDOW_DAYS"
	EnvPayoutSkipWeekends      = "PACKFINDERZ_PAYOUT_SKIP_WEEKENDS"
	EnvPayoutProcessingSLA     = "PACKFINDERZ_PAYOUT_PROCESSING_SLA"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
