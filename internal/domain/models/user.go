package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ApplianceName identifies one of the fixed set of tracked devices.
type ApplianceName string

const (
	ApplianceLight  ApplianceName = "light"
	ApplianceFan    ApplianceName = "fan"
	ApplianceFridge ApplianceName = "fridge"
	ApplianceAC     ApplianceName = "ac"
	ApplianceTV     ApplianceName = "tv"
)

// ApplianceNames lists every tracked appliance in a stable order.
var ApplianceNames = []ApplianceName{
	ApplianceLight,
	ApplianceFan,
	ApplianceFridge,
	ApplianceAC,
	ApplianceTV,
}

// DayBucket aggregates consumption for one calendar day. Date is always a UTC
// midnight; there is at most one bucket per distinct date and buckets are
// appended, never removed.
type DayBucket struct {
	Date             time.Time `bson:"date" json:"date"`
	TotalConsumption float64   `bson:"total_consumption" json:"totalConsumption"`
}

// Appliance is the per-device state record embedded in the user document.
type Appliance struct {
	IsRunning          bool        `bson:"is_running" json:"isRunning"`
	UpTime             *time.Time  `bson:"up_time,omitempty" json:"upTime"`
	Consumption        float64     `bson:"consumption" json:"consumption"`
	TotalConsumption   float64     `bson:"total_consumption" json:"totalConsumption"`
	DayWiseConsumption []DayBucket `bson:"day_wise_consumption" json:"dayWiseConsumption"`
}

// TruncateToDay collapses a timestamp to its UTC calendar day. All day-bucket
// matching goes through this so DST and host timezone changes cannot split a day.
func TruncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ApplyConsumption folds an incremental amount into the day bucket for now's
// calendar day, appending a new bucket when the day has no entry yet. It does
// not touch Consumption or TotalConsumption; those accumulators belong to the
// caller.
func (a *Appliance) ApplyConsumption(now time.Time, amount float64) {
	today := TruncateToDay(now)

	for i := range a.DayWiseConsumption {
		if a.DayWiseConsumption[i].Date.Equal(today) {
			a.DayWiseConsumption[i].TotalConsumption += amount
			return
		}
	}

	a.DayWiseConsumption = append(a.DayWiseConsumption, DayBucket{
		Date:             today,
		TotalConsumption: amount,
	})
}

// ConsumptionOn reports the bucket total for the calendar day containing t,
// or zero when no bucket exists for that day.
func (a *Appliance) ConsumptionOn(t time.Time) float64 {
	day := TruncateToDay(t)
	for _, bucket := range a.DayWiseConsumption {
		if bucket.Date.Equal(day) {
			return bucket.TotalConsumption
		}
	}
	return 0
}

// User is the per-user aggregate document. It owns exactly five appliance
// records and is the unit of read-modify-write against the store.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Username  string             `bson:"username" json:"username"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"`
	Light     Appliance          `bson:"light" json:"light"`
	Fan       Appliance          `bson:"fan" json:"fan"`
	Fridge    Appliance          `bson:"fridge" json:"fridge"`
	AC        Appliance          `bson:"ac" json:"ac"`
	TV        Appliance          `bson:"tv" json:"tv"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}

// NewUser builds a user aggregate with default appliance records, each seeded
// with a single zero-consumption bucket dated at creation.
func NewUser(username, email, hashedPassword string, now time.Time) *User {
	u := &User{
		Username:  username,
		Email:     email,
		Password:  hashedPassword,
		CreatedAt: now,
	}

	seed := DayBucket{Date: TruncateToDay(now), TotalConsumption: 0}
	for _, name := range ApplianceNames {
		record := u.Appliance(name)
		record.DayWiseConsumption = []DayBucket{seed}
	}

	return u
}

// Appliance resolves a named appliance record on the aggregate, returning nil
// for names outside the fixed set.
func (u *User) Appliance(name ApplianceName) *Appliance {
	switch name {
	case ApplianceLight:
		return &u.Light
	case ApplianceFan:
		return &u.Fan
	case ApplianceFridge:
		return &u.Fridge
	case ApplianceAC:
		return &u.AC
	case ApplianceTV:
		return &u.TV
	default:
		return nil
	}
}
