package types

import "time"

// Testimony is a visitor-submitted account of a miscarriage.
// Visitors create testimonies anonymously; moderators decide whether
// they are published.
type Testimony struct {
	// ID is the unique identifier of the testimony (UUID).
	ID string `json:"id" db:"id"`

	// Name is the display name chosen by the visitor.
	// Defaults to "Anonymous".
	Name string `json:"name" db:"name"`

	// WhenWeeks is the week of pregnancy in which the miscarriage happened.
	WhenWeeks int `json:"when_weeks" db:"when_weeks"`

	// WhenWeeksNoticed is the week in which the visitor noticed it, if given.
	WhenWeeksNoticed *int `json:"when_weeks_noticed,omitempty" db:"when_weeks_noticed"`

	PhysicalPain Pain `json:"physical_pain,omitempty" db:"physical_pain"`
	MentalPain   Pain `json:"mental_pain,omitempty" db:"mental_pain"`

	// Hospital reports whether the visitor went to hospital.
	Hospital *bool `json:"hospital,omitempty" db:"hospital"`

	PeriodVolume PeriodVolume `json:"period_volume,omitempty" db:"period_volume"`
	PeriodLength PeriodLength `json:"period_length,omitempty" db:"period_length"`
	PeriodPain   *bool        `json:"period_pain,omitempty" db:"period_pain"`

	// Story is the free-text testimony.
	Story string `json:"story" db:"story"`

	// CreatedAt is set by the server when the testimony is stored
	// and never changes afterwards.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Status is the moderation state of the testimony.
	Status Status `json:"status" db:"status"`
}

// TestimonyInput is the visitor-writable part of a testimony.
// Server-assigned fields (id, status, created_at) have no place here,
// so a client cannot set them.
type TestimonyInput struct {
	Name             *string      `json:"name"`
	WhenWeeks        *int         `json:"when_weeks"`
	WhenWeeksNoticed *int         `json:"when_weeks_noticed"`
	PhysicalPain     Pain         `json:"physical_pain"`
	MentalPain       Pain         `json:"mental_pain"`
	Hospital         *bool        `json:"hospital"`
	PeriodVolume     PeriodVolume `json:"period_volume"`
	PeriodLength     PeriodLength `json:"period_length"`
	PeriodPain       *bool        `json:"period_pain"`
	Story            *string      `json:"story"`
}

// TestimonyPatch carries the fields a moderator may change.
// Nil fields are left untouched.
type TestimonyPatch struct {
	Name   *string `json:"name"`
	Story  *string `json:"story"`
	Status *Status `json:"status"`
}

// TestimonyFilter is an equality filter over testimony fields.
// Nil fields do not constrain the result.
type TestimonyFilter struct {
	Name             *string
	WhenWeeks        *int
	WhenWeeksNoticed *int
	PhysicalPain     *Pain
	MentalPain       *Pain
	Hospital         *bool
	PeriodVolume     *PeriodVolume
	PeriodLength     *PeriodLength
	PeriodPain       *bool
	Status           *Status
}

// TestimonyPage is one page of a filtered testimony listing.
type TestimonyPage struct {
	Items       []Testimony `json:"items"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
}

// Status is the moderation state of a testimony.
type Status string

const (
	// StatusPending is assigned to every new submission.
	StatusPending Status = "pending"

	// StatusApproved marks a testimony as visible to the public.
	StatusApproved Status = "approved"

	// StatusDeclined marks a testimony as rejected by a moderator.
	StatusDeclined Status = "declined"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined:
		return true
	}
	return false
}

// Pain grades physical or mental pain.
type Pain string

const (
	PainNone   Pain = "Painless"
	PainSome   Pain = "Painful"
	PainSevere Pain = "Severe Pain"
)

func (p Pain) Valid() bool {
	switch p {
	case PainNone, PainSome, PainSevere:
		return true
	}
	return false
}

// PeriodVolume describes how the first period after the loss compared in volume.
type PeriodVolume string

const (
	PeriodVolumeIncreased PeriodVolume = "Increased"
	PeriodVolumeDecreased PeriodVolume = "Decreased"
	PeriodVolumeUnchanged PeriodVolume = "Unchanged"
)

func (v PeriodVolume) Valid() bool {
	switch v {
	case PeriodVolumeIncreased, PeriodVolumeDecreased, PeriodVolumeUnchanged:
		return true
	}
	return false
}

// PeriodLength describes how the first period after the loss compared in length.
type PeriodLength string

const (
	PeriodLengthLonger    PeriodLength = "Additional days"
	PeriodLengthShorter   PeriodLength = "Fewer days"
	PeriodLengthUnchanged PeriodLength = "Unchanged"
)

func (l PeriodLength) Valid() bool {
	switch l {
	case PeriodLengthLonger, PeriodLengthShorter, PeriodLengthUnchanged:
		return true
	}
	return false
}
