package models

import "time"

// DailyEnergyReport is the per-user roll-up of one calendar day's consumption,
// stored in MongoDB by the nightly reporting job.
type DailyEnergyReport struct {
	UserID           string             `bson:"user_id" json:"user_id"`
	Username         string             `bson:"username" json:"username"`
	Date             time.Time          `bson:"date" json:"date"`
	ByAppliance      map[string]float64 `bson:"by_appliance" json:"by_appliance"`
	TotalConsumption float64            `bson:"total_consumption" json:"total_consumption"`
	RunningCount     int                `bson:"running_count" json:"running_count"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
}
