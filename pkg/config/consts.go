package config

const (
	EnvPrefix = "dealbrief"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv = "DEALBRIEF_APP_ENV"
	EnvPort   = "DEALBRIEF_APP_PORT"

	EnvDBDSN  = "DEALBRIEF_DB_DSN"
	EnvDBHost = "DEALBRIEF_DB_HOST"
	EnvDBUser = "DEALBRIEF_DB_USER"
	EnvDBName = "DEALBRIEF_DB_NAME"

	EnvRedisURL = "DEALBRIEF_REDIS_URL"

	EnvJWTSecret              = "DEALBRIEF_JWT_SECRET"
	EnvJWTIssuer              = "DEALBRIEF_JWT_ISSUER"
	EnvJWTExpMins             = "DEALBRIEF_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "DEALBRIEF_REFRESH_TOKEN_TTL_MINUTES"

	EnvSignupBonus    = "DEALBRIEF_SIGNUP_BONUS"
	EnvUploadReward   = "DEALBRIEF_UPLOAD_REWARD"
	EnvDownloadCost   = "DEALBRIEF_DOWNLOAD_COST"
	EnvMinBountyStake = "DEALBRIEF_MIN_BOUNTY_STAKE"

	EnvGCPProjectID      = "DEALBRIEF_GCP_PROJECT_ID"
	EnvGCSBucket         = "DEALBRIEF_GCS_BUCKET_NAME"
	EnvGCSDownloadExpiry = "DEALBRIEF_GCS_DOWNLOAD_URL_EXPIRY"

	EnvPubSubDomainTopic      = "DEALBRIEF_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubNotificationsSub = "DEALBRIEF_PUBSUB_NOTIFICATIONS_SUBSCRIPTION"
	EnvPubSubAnalyticsSub     = "DEALBRIEF_PUBSUB_ANALYTICS_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
