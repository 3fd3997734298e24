package constants

const (
	StatusRequested = "requested"
	StatusReserved  = "reserved"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusRejected  = "rejected"
)

const (
	MethodPayPal = "paypal"
	MethodVenmo  = "venmo"
	MethodCard   = "card"
)

const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
	PeriodAll   = "all"
)

const (
	DefaultDailyUploadLimit   = 15
	DefaultMinimumWithdrawal  = "10.00"
	DefaultReservationTimeout = "30m"
	DefaultSweepInterval      = "1m"
	DefaultJWTSecret          = "supersecretkey"
	DefaultListLimit          = 100
	DayBucketLayout           = "2006-01-02"
)
