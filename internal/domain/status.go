package domain

import "strings"

var jobTypes = map[string]JobType{
	"nightly": JobTypeNightly,
	"weekly":  JobTypeWeekly,
	"monthly": JobTypeMonthly,
	"trigger": JobTypeTrigger,
}

var triggerTypes = map[string]TriggerType{
	"stockout_alert":    TriggerStockoutAlert,
	"weather_event":     TriggerWeatherEvent,
	"promotion":         TriggerPromotion,
	"vendor_disruption": TriggerVendorDisruption,
	"manual":            TriggerManual,
}

var triggerPriorities = map[string]TriggerPriority{
	"critical": TriggerPriorityCritical,
	"high":     TriggerPriorityHigh,
	"normal":   TriggerPriorityNormal,
	"low":      TriggerPriorityLow,
}

var storeTiers = map[string]StoreTier{
	"premium":  StoreTierPremium,
	"standard": StoreTierStandard,
	"basic":    StoreTierBasic,
}

// ParseJobType returns the job type for a label (case-insensitive).
func ParseJobType(label string) (JobType, bool) {
	t, ok := jobTypes[strings.ToLower(strings.TrimSpace(label))]
	return t, ok
}

// ParseTriggerType returns the trigger type for a label (case-insensitive).
func ParseTriggerType(label string) (TriggerType, bool) {
	t, ok := triggerTypes[strings.ToLower(strings.TrimSpace(label))]
	return t, ok
}

// ParseTriggerPriority returns the trigger priority for a label, NORMAL when unknown.
func ParseTriggerPriority(label string) TriggerPriority {
	if p, ok := triggerPriorities[strings.ToLower(strings.TrimSpace(label))]; ok {
		return p
	}
	return TriggerPriorityNormal
}

// ParseStoreTier returns the tier for a label, standard when unknown.
func ParseStoreTier(label string) StoreTier {
	if t, ok := storeTiers[strings.ToLower(strings.TrimSpace(label))]; ok {
		return t
	}
	return StoreTierStandard
}
