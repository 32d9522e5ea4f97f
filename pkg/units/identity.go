package units

// IdentityFunc maps a unit to its dedup key: two units are the same logical
// unit iff their keys are equal.
type IdentityFunc func(Unit) string

// Identity is the active identity policy. A unit's id can survive a rename
// and a name can survive a re-numbering, so both fields must match. If id
// alone ever turns out to be authoritative upstream, this one function is
// the only thing that changes.
var Identity IdentityFunc = func(u Unit) string {
	return u.ID + "|" + u.Name
}
