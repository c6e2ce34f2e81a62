package constants

import "time"

const (
	AppName            = "tally"
	DefaultKeyringUser = "telemetry-connection"
	DefaultConfigDir   = "~/.config/tally"
	DefaultDBFileName  = "tally.db"
	Version            = "v0.3.0"

	// DateFormat is the calendar-day format used for log entry dates (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the time-of-day format used for reminders (HH:MM)
	TimeFormat = "15:04"

	// TimestampFormat is used for every persisted timestamp
	TimestampFormat = time.RFC3339Nano

	// Fixed categories. These ids are reserved and seeded on every open.
	FixedPositiveCategoryID   = "positive"
	FixedNegativeCategoryID   = "negative"
	FixedPositiveCategoryName = "Build"
	FixedNegativeCategoryName = "Avoid"

	// Backup constants
	MaxBackups       = 14
	BackupDirName    = "backups"
	BackupFilePrefix = "tally-"
	BackupFileSuffix = ".json"

	// Snapshot transfer format version. Bumped only when the envelope changes,
	// independently of the schema version of the records inside it.
	SnapshotFormatVersion = 1

	// Lock constants
	LockfileName = "tally.lock"

	// Sheet backup constants
	SheetManifestName = "manifest.yaml"
	SheetFileSuffix   = ".csv"
)
