package service

const (
	// Overview windows
	RecentSessionsLimit = 5
	OverviewWeeks       = 4

	// Sampling
	RecordIntervalSecs = 1

	// Unit conversions
	KmPerMile = 1.609344
)
