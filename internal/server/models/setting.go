package models

import "time"

// AppSetting is the logical singleton holding global toggles. Accidental
// duplicates are tolerated: reads pick the newest row, writes delete the
// rest.
type AppSetting struct {
	ID                string
	AdmissionRequired bool
	CreatedAt         time.Time
}
