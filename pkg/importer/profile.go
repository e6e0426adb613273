package importer

import (
	"github.com/Ramsey-B/fern/pkg/places"
)

const (
	ModeImport   = "import"
	ModeRecovery = "recovery"
)

// Profile is the fidelity of one run of the item pipeline.
type Profile struct {
	Mode      string
	FieldMask string
	// RadiusKm and WidenFactor drive locality matching; a WidenFactor of 1 or
	// less disables the widened second pass.
	RadiusKm    float64
	WidenFactor float64
	// MaxPhotos of 0 persists every photo the provider returns.
	MaxPhotos       int
	FirstPhotoWidth int
	OtherPhotoWidth int
	// Recovery semantics: existing ids are skipped rather than reported as
	// duplicates, unmatched places fall back to the first locality of their
	// jurisdiction, and provider not-found is an inconsistency.
	Recovery bool
}

// FullProfile is the operator import: every photo, the full field mask and
// the primary radius with one widened retry.
func FullProfile(radiusKm, widenFactor float64) Profile {
	return Profile{
		Mode:            ModeImport,
		FieldMask:       places.FullFieldMask,
		RadiusKm:        radiusKm,
		WidenFactor:     widenFactor,
		FirstPhotoWidth: 1600,
		OtherPhotoWidth: 1200,
	}
}

// RecoveryProfile rebuilds lost records: cover photo only, reduced mask,
// wider radius and no widening.
func RecoveryProfile(radiusKm float64) Profile {
	return Profile{
		Mode:            ModeRecovery,
		FieldMask:       places.RecoveryFieldMask,
		RadiusKm:        radiusKm,
		WidenFactor:     1,
		MaxPhotos:       1,
		FirstPhotoWidth: 1600,
		OtherPhotoWidth: 1600,
		Recovery:        true,
	}
}

func (p Profile) photoCount(available int) int {
	if p.MaxPhotos > 0 && available > p.MaxPhotos {
		return p.MaxPhotos
	}
	return available
}

func (p Profile) photoWidth(index int) int {
	if index == 0 {
		return p.FirstPhotoWidth
	}
	return p.OtherPhotoWidth
}
