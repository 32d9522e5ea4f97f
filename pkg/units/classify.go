package units

// Category is a collection's primary/secondary split of its umbrella layer.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryPrimary
	CategorySecondary
)

func (c Category) String() string {
	switch c {
	case CategoryPrimary:
		return "primary"
	case CategorySecondary:
		return "secondary"
	}
	return "unknown"
}

// Classifier tags units by their organizationType display value. Units with
// no organization type, or with a display value matching neither category,
// classify as Unknown; they stay in raw sets and totals but are excluded
// from categorized splits.
type Classifier struct {
	Primary   string // e.g. "Ward" or "Stake"
	Secondary string // e.g. "Branch" or "District"
}

func (c Classifier) Classify(u Unit) Category {
	if u.OrganizationType == nil {
		return CategoryUnknown
	}
	switch u.OrganizationType.Display {
	case c.Primary:
		return CategoryPrimary
	case c.Secondary:
		return CategorySecondary
	}
	return CategoryUnknown
}
