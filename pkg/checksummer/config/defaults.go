// Package config provides configuration management for checksummer.
package config

// Default configuration values for checksummer.
const (
	// DefaultBatchSize is the number of record writes per store transaction.
	DefaultBatchSize = 5000

	// DefaultWorkers is the default number of directory walker workers.
	DefaultWorkers = 4

	// DefaultFormat is the report format for one-shot commands.
	DefaultFormat = "pretty"

	// DefaultLimit caps report rows. Zero means no limit.
	DefaultLimit = 0

	// DefaultPagerCommand is used when neither the config nor $PAGER names one.
	// -F makes less exit when the output fits on one screen.
	DefaultPagerCommand = "less -X -F -R"

	// DefaultRetentionDays is the default number of days to retain journal entries.
	DefaultRetentionDays = 90

	// DefaultLogLevel is the default file log level.
	DefaultLogLevel = "info"

	// DefaultLogMaxSize is the log size that triggers rotation.
	DefaultLogMaxSize = "10MB"
)

// DefaultExclusions contains patterns excluded from collection by default.
var DefaultExclusions = []string{
	".git",
	".DS_Store",
	"lost+found",
}
