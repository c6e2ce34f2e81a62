package constants

const (
	// Store settings keys
	SettingTheme          = "theme"
	SettingPinHash        = "pin_hash"
	SettingLastExportAt   = "last_export_at"
	SettingLastImportAt   = "last_import_at"
	SettingLastSheetSync  = "last_sheet_sync_at"
	SettingFeaturePrefix  = "feature."
	SettingTelemetryOptIn = "telemetry_opt_in"

	// Default settings values
	DefaultTheme          = "system"
	DefaultTelemetryOptIn = false

	// Config file keys (viper)
	ConfigKeyDBPath          = "db_path"
	ConfigKeyDebug           = "debug"
	ConfigKeyBackupMax       = "backup.max"
	ConfigKeyTelemetrySink   = "telemetry.sink"
	ConfigKeyTelemetryUserID = "telemetry.user_id"
	ConfigKeyAppVersion      = "app_version"

	// Telemetry sink kinds
	TelemetrySinkNone     = "none"
	TelemetrySinkLog      = "log"
	TelemetrySinkPostgres = "postgres"
)
