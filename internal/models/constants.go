package models

const (
	// DefaultDialogTTL время жизни состояния диалога в Redis
	DefaultDialogTTL = 2 * 60 * 60 // 2 часа в секундах

	// DefaultTimezone is used for workload day boundaries when none is configured.
	DefaultTimezone = "Asia/Ho_Chi_Minh"

	// InboxCapacity is how many notifications the inbox keeps.
	InboxCapacity = 100

	// RefreshMaxAttempts bounds store refresh retries on transport failures.
	RefreshMaxAttempts = 3
)

// Workload bands.
const (
	BandFree     = "free"
	BandNormal   = "normal"
	BandBusy     = "busy"
	BandVeryBusy = "very busy"
)
