package webhook

import (
	"time"

	"github.com/ivikasavnish/salonbook/pkg/booking"
)

// payload is one accepted body shape. Only one shape is active per server.
type payload interface {
	missing() []string
	overrides() booking.Overrides
}

// FlatPayload is the default body shape. Date and phone are normalized
// before the booking runs.
//
//	{
//	  "date": "02-02-2026",
//	  "time": "02:00 PM",
//	  "email": "user@example.com",
//	  "phone": "+15199804247",
//	  "service": "Curly Cut",
//	  "employee": "First Available",
//	  "firstName": "John",
//	  "lastName": "Doe"
//	}
type FlatPayload struct {
	Date      string   `json:"date"`
	Time      string   `json:"time"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Service   string   `json:"service"`
	Employee  string   `json:"employee"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Headless  *bool    `json:"headless,omitempty"`
	SlowMo    *float64 `json:"slowMo,omitempty"` // milliseconds
}

func (p *FlatPayload) missing() []string {
	return missingFields(
		field{"date", p.Date},
		field{"time", p.Time},
		field{"email", p.Email},
		field{"phone", p.Phone},
		field{"service", p.Service},
		field{"employee", p.Employee},
		field{"firstName", p.FirstName},
		field{"lastName", p.LastName},
	)
}

func (p *FlatPayload) overrides() booking.Overrides {
	pref := booking.AnyTime
	index := 0
	return booking.Overrides{
		Date:           NormalizeDateToDdMmYyyy(p.Date),
		TimePreference: &pref,
		SpecificTime:   p.Time,
		Service:        p.Service,
		Employee:       p.Employee,
		TimeSlotIndex:  &index,
		Customer: booking.CustomerInfo{
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Email:     p.Email,
			Phone:     NormalizePhone(p.Phone),
		},
		Headless: p.Headless,
		SlowMo:   millis(p.SlowMo),
	}
}

// NestedPayload is the alternative body shape. Values are passed through
// as given.
type NestedPayload struct {
	Date           string               `json:"date"`
	TimePreference string               `json:"timePreference"`
	SpecificTime   string               `json:"specificTime,omitempty"`
	Service        string               `json:"service"`
	Employee       string               `json:"employee"`
	TimeSlotIndex  *int                 `json:"timeSlotIndex,omitempty"`
	CustomerInfo   booking.CustomerInfo `json:"customerInfo"`
	Headless       *bool                `json:"headless,omitempty"`
	SlowMo         *float64             `json:"slowMo,omitempty"` // milliseconds
}

func (p *NestedPayload) missing() []string {
	return missingFields(
		field{"date", p.Date},
		field{"service", p.Service},
		field{"customerInfo.firstName", p.CustomerInfo.FirstName},
		field{"customerInfo.lastName", p.CustomerInfo.LastName},
		field{"customerInfo.email", p.CustomerInfo.Email},
		field{"customerInfo.phone", p.CustomerInfo.Phone},
	)
}

func (p *NestedPayload) overrides() booking.Overrides {
	o := booking.Overrides{
		Date:          p.Date,
		SpecificTime:  p.SpecificTime,
		Service:       p.Service,
		Employee:      p.Employee,
		TimeSlotIndex: p.TimeSlotIndex,
		Customer:      p.CustomerInfo,
		Headless:      p.Headless,
		SlowMo:        millis(p.SlowMo),
	}
	if p.TimePreference != "" {
		pref := booking.ParseTimePreference(p.TimePreference)
		o.TimePreference = &pref
	}
	return o
}

type field struct {
	name  string
	value string
}

func missingFields(fields ...field) []string {
	var out []string
	for _, f := range fields {
		if f.value == "" {
			out = append(out, "Missing field: "+f.name)
		}
	}
	return out
}

func millis(ms *float64) *time.Duration {
	if ms == nil {
		return nil
	}
	d := time.Duration(*ms * float64(time.Millisecond))
	return &d
}
