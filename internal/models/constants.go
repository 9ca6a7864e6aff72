package models

const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
	StatusDraft     = "draft"
)

const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04"
)

// AllServicesKey is the week cache key used when results are merged across services.
const AllServicesKey = "ALL"

// Rule defaults applied whenever a business rule is missing from configuration.
const (
	DefaultBusinessStart            = 8
	DefaultBusinessEnd              = 20
	DefaultLunchStart               = 13
	DefaultLunchEnd                 = 14
	DefaultSlotDurationMinutes      = 30
	DefaultAdvanceBookingDays       = 30
	DefaultMinLeadTimeMinutes       = 60
	DefaultCancellationEnabled      = true
	DefaultCancellationLeadHours    = 24
	DefaultMaxActiveBookingsPerUser = 3

	// DefaultServiceDurationMinutes is used when a service id cannot be resolved.
	DefaultServiceDurationMinutes = 60
)

// DefaultWorkingDays are Tuesday through Saturday (time.Weekday numbering).
var DefaultWorkingDays = []int{2, 3, 4, 5, 6}

const (
	// DefaultNextSlotHorizonDays bounds the next-available scan when the caller gives none.
	DefaultNextSlotHorizonDays = 30

	// MaxHorizonDays caps how far ahead anything is scanned or cached when
	// the advance window is unlimited.
	MaxHorizonDays = 366

	// DefaultPreloadHorizonDays is how many days ahead the background warmer fills.
	DefaultPreloadHorizonDays = 14

	// DefaultPreloadInterval is the warmer period in seconds.
	DefaultPreloadInterval = 5 * 60
)
