package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mymiscarriage/apiserver/types"
)

const (
	DefaultName    = "Anonymous"
	MaxNameLength  = 30
	MaxStoryLength = 5000

	MinWhenWeeks        = 5
	MaxWhenWeeks        = 20
	MinWhenWeeksNoticed = 5
	MaxWhenWeeksNoticed = 25
)

// ValidateTestimonyInput checks a visitor submission and returns the
// normalized testimony. ID, status and creation time are left for the
// caller to assign.
func ValidateTestimonyInput(in types.TestimonyInput) (types.Testimony, error) {
	var verr types.ValidationError
	var out types.Testimony

	out.Name = normalizeName(in.Name, &verr)

	switch {
	case in.WhenWeeks == nil:
		verr.Add("when_weeks", "is required")
	case *in.WhenWeeks < MinWhenWeeks || *in.WhenWeeks > MaxWhenWeeks:
		verr.Add("when_weeks", rangeMessage(MinWhenWeeks, MaxWhenWeeks))
	default:
		out.WhenWeeks = *in.WhenWeeks
	}

	if in.WhenWeeksNoticed != nil {
		if *in.WhenWeeksNoticed < MinWhenWeeksNoticed || *in.WhenWeeksNoticed > MaxWhenWeeksNoticed {
			verr.Add("when_weeks_noticed", rangeMessage(MinWhenWeeksNoticed, MaxWhenWeeksNoticed))
		} else {
			noticed := *in.WhenWeeksNoticed
			out.WhenWeeksNoticed = &noticed
		}
	}

	if in.PhysicalPain != "" && !in.PhysicalPain.Valid() {
		verr.Add("physical_pain", oneOf(types.PainNone, types.PainSome, types.PainSevere))
	}
	out.PhysicalPain = in.PhysicalPain

	if in.MentalPain != "" && !in.MentalPain.Valid() {
		verr.Add("mental_pain", oneOf(types.PainNone, types.PainSome, types.PainSevere))
	}
	out.MentalPain = in.MentalPain

	if in.PeriodVolume != "" && !in.PeriodVolume.Valid() {
		verr.Add("period_volume", oneOf(types.PeriodVolumeIncreased, types.PeriodVolumeDecreased, types.PeriodVolumeUnchanged))
	}
	out.PeriodVolume = in.PeriodVolume

	if in.PeriodLength != "" && !in.PeriodLength.Valid() {
		verr.Add("period_length", oneOf(types.PeriodLengthLonger, types.PeriodLengthShorter, types.PeriodLengthUnchanged))
	}
	out.PeriodLength = in.PeriodLength

	out.Hospital = copyBool(in.Hospital)
	out.PeriodPain = copyBool(in.PeriodPain)

	if in.Story != nil {
		out.Story = normalizeStory(*in.Story, &verr)
	}

	if err := verr.OrNil(); err != nil {
		return types.Testimony{}, err
	}
	return out, nil
}

// ValidateTestimonyPatch applies the creation rules to the fields a
// moderator may change and returns the normalized patch.
func ValidateTestimonyPatch(patch types.TestimonyPatch) (types.TestimonyPatch, error) {
	var verr types.ValidationError
	var out types.TestimonyPatch

	if patch.Name != nil {
		name := normalizeName(patch.Name, &verr)
		out.Name = &name
	}
	if patch.Story != nil {
		story := normalizeStory(*patch.Story, &verr)
		out.Story = &story
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			verr.Add("status", oneOf(types.StatusPending, types.StatusApproved, types.StatusDeclined))
		} else {
			status := *patch.Status
			out.Status = &status
		}
	}

	if err := verr.OrNil(); err != nil {
		return types.TestimonyPatch{}, err
	}
	return out, nil
}

func normalizeName(name *string, verr *types.ValidationError) string {
	if name == nil {
		return DefaultName
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return DefaultName
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		verr.Add("name", fmt.Sprintf("must be at most %d characters", MaxNameLength))
	}
	return trimmed
}

func normalizeStory(story string, verr *types.ValidationError) string {
	trimmed := strings.TrimSpace(story)
	if utf8.RuneCountInString(trimmed) > MaxStoryLength {
		verr.Add("story", fmt.Sprintf("must be at most %d characters", MaxStoryLength))
	}
	return trimmed
}

func rangeMessage(lo, hi int) string {
	return fmt.Sprintf("must be between %d and %d", lo, hi)
}

func oneOf[T ~string](values ...T) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, fmt.Sprintf("%q", string(v)))
	}
	return "must be one of " + strings.Join(quoted, ", ")
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
