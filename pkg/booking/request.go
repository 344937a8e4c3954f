package booking

import (
	"strconv"
	"strings"
	"time"
)

// TimePreference is the time-of-day filter offered by the booking form. Its
// value is the option's position in the form's dropdown.
type TimePreference int

const (
	AnyTime TimePreference = iota
	Morning
	Afternoon
	Evening
)

var timePreferenceLabels = map[TimePreference]string{
	AnyTime:   "Any time",
	Morning:   "Morning (before noon)",
	Afternoon: "Afternoon (noon - 5pm)",
	Evening:   "Evening (after 5pm)",
}

func (p TimePreference) String() string {
	if label, ok := timePreferenceLabels[p]; ok {
		return label
	}
	return timePreferenceLabels[AnyTime]
}

func (p TimePreference) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *TimePreference) UnmarshalText(text []byte) error {
	*p = ParseTimePreference(string(text))
	return nil
}

// ParseTimePreference accepts the form's labels, a short name ("morning") or
// the option position. Anything unrecognised is AnyTime.
func ParseTimePreference(s string) TimePreference {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if _, ok := timePreferenceLabels[TimePreference(n)]; ok {
			return TimePreference(n)
		}
		return AnyTime
	}
	for p, label := range timePreferenceLabels {
		if s == strings.ToLower(label) {
			return p
		}
	}
	switch {
	case strings.HasPrefix(s, "morning"):
		return Morning
	case strings.HasPrefix(s, "afternoon"):
		return Afternoon
	case strings.HasPrefix(s, "evening"):
		return Evening
	}
	return AnyTime
}

// DefaultEmployee lets the salon assign whoever is free.
const DefaultEmployee = "First Available"

// CustomerInfo holds the contact details typed into the client form.
type CustomerInfo struct {
	FirstName string `json:"firstName" yaml:"first_name"`
	LastName  string `json:"lastName" yaml:"last_name"`
	Email     string `json:"email" yaml:"email"`
	Phone     string `json:"phone" yaml:"phone"`
	Notes     string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Request describes one booking. It is a plain value: copies never share state.
type Request struct {
	URL            string         `json:"url" yaml:"url"`
	Date           string         `json:"date" yaml:"date"` // DD/MM/YYYY
	TimePreference TimePreference `json:"timePreference" yaml:"time_preference"`
	SpecificTime   string         `json:"specificTime,omitempty" yaml:"specific_time,omitempty"`
	Service        string         `json:"service" yaml:"service"`
	Employee       string         `json:"employee" yaml:"employee"`
	TimeSlotIndex  int            `json:"timeSlotIndex" yaml:"time_slot_index"`
	Customer       CustomerInfo   `json:"customerInfo" yaml:"customer"`
	Headless       bool           `json:"headless" yaml:"headless"`
	SlowMo         time.Duration  `json:"slowMo" yaml:"slow_mo"`
}

// Overrides is a partial Request. Empty strings and nil pointers leave the
// base value untouched.
type Overrides struct {
	URL            string          `yaml:"url"`
	Date           string          `yaml:"date"`
	TimePreference *TimePreference `yaml:"time_preference"`
	SpecificTime   string          `yaml:"specific_time"`
	Service        string          `yaml:"service"`
	Employee       string          `yaml:"employee"`
	TimeSlotIndex  *int            `yaml:"time_slot_index"`
	Customer       CustomerInfo    `yaml:"customer"`
	Headless       *bool           `yaml:"headless"`
	SlowMo         *time.Duration  `yaml:"slow_mo"`
}

// Apply returns a copy of r with o merged over it.
func (r Request) Apply(o Overrides) Request {
	setString(&r.URL, o.URL)
	setString(&r.Date, o.Date)
	setString(&r.SpecificTime, o.SpecificTime)
	setString(&r.Service, o.Service)
	setString(&r.Employee, o.Employee)
	setString(&r.Customer.FirstName, o.Customer.FirstName)
	setString(&r.Customer.LastName, o.Customer.LastName)
	setString(&r.Customer.Email, o.Customer.Email)
	setString(&r.Customer.Phone, o.Customer.Phone)
	setString(&r.Customer.Notes, o.Customer.Notes)
	if o.TimePreference != nil {
		r.TimePreference = *o.TimePreference
	}
	if o.TimeSlotIndex != nil {
		r.TimeSlotIndex = *o.TimeSlotIndex
	}
	if o.Headless != nil {
		r.Headless = *o.Headless
	}
	if o.SlowMo != nil {
		r.SlowMo = *o.SlowMo
	}
	return r
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate reports every required field that is empty.
func (r Request) Validate() error {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("url", r.URL)
	check("date", r.Date)
	check("service", r.Service)
	check("employee", r.Employee)
	check("customerInfo.firstName", r.Customer.FirstName)
	check("customerInfo.lastName", r.Customer.LastName)
	check("customerInfo.email", r.Customer.Email)
	check("customerInfo.phone", r.Customer.Phone)
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}
