package model

import "fmt"

// ReminderKind identifies one reminder slot, e.g. "days_7" or "hours_24".
type ReminderKind string

func DaysReminder(days int) ReminderKind   { return ReminderKind(fmt.Sprintf("days_%d", days)) }
func HoursReminder(hours int) ReminderKind { return ReminderKind(fmt.Sprintf("hours_%d", hours)) }
