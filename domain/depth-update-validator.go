package domain

// GapTolerance is the largest distance between an update's FirstUpdateID
// and the expected next id that is still applied as benign reordering.
// At or past the threshold the update means data loss.
//
// TODO: the threshold comes from observed feed behavior, not from a
// protocol guarantee; revisit once the exchange documents reordering.
const GapTolerance = 10

// DepthUpdateValidator decides whether a diff may be applied to a book at
// the given watermark.
type DepthUpdateValidator struct{}

// Check returns ErrUpdateOutdated for already-incorporated updates,
// ErrUpdateGap when the sequence has a hole of GapTolerance or more, and
// nil when the update must be applied (in sequence or a tolerated gap).
func (v *DepthUpdateValidator) Check(update *BookUpdate, lastUpdateID int64) error {
	if update.FinalUpdateID <= lastUpdateID {
		return ErrUpdateOutdated
	}
	if v.Gap(update, lastUpdateID) >= GapTolerance {
		return ErrUpdateGap
	}
	return nil
}

// Gap is the number of update ids missing between the watermark and the
// start of this update. Zero or negative means the ranges touch or overlap.
func (v *DepthUpdateValidator) Gap(update *BookUpdate, lastUpdateID int64) int64 {
	return update.FirstUpdateID - (lastUpdateID + 1)
}
