// Package units defines the harvested record type and the identity rules
// used to deduplicate and diff it.
package units

// Address carries the location fields the locator API attaches to a unit.
// Many records, ships and military units especially, have no address at all.
type Address struct {
	City        string `json:"city,omitempty"`
	County      string `json:"county,omitempty"`
	State       string `json:"state,omitempty"`
	StateCode   string `json:"stateCode,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"countryCode2,omitempty"`
}

// OrganizationType is the subtype tag used to split a collection into its
// primary and secondary categories (Ward/Branch, Stake/District).
type OrganizationType struct {
	ID      int    `json:"id,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type Identifiers struct {
	UnitNumber  int    `json:"unitNumber,omitempty"`
	FacilityID  string `json:"facilityId,omitempty"`
	StructureID string `json:"structureId,omitempty"`
}

type Language struct {
	ID      int    `json:"id,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Unit is one organizational record returned by the locator API. Units are
// immutable once parsed; they are folded into a snapshot and discarded.
// Created/Updated stay strings: the API's date formats vary and nothing here
// does arithmetic on them.
type Unit struct {
	ID               string            `json:"id"`
	Type             string            `json:"type,omitempty"`
	Name             string            `json:"name,omitempty"`
	NameDisplay      string            `json:"nameDisplay,omitempty"`
	TypeDisplay      string            `json:"typeDisplay,omitempty"`
	OrganizationType *OrganizationType `json:"organizationType,omitempty"`
	Identifiers      *Identifiers      `json:"identifiers,omitempty"`
	Address          *Address          `json:"address,omitempty"`
	Coordinates      *Coordinates      `json:"coordinates,omitempty"`
	Language         *Language         `json:"language,omitempty"`
	Provider         string            `json:"provider,omitempty"`
	Specialized      bool              `json:"specialized,omitempty"`
	Created          string            `json:"created,omitempty"`
	Updated          string            `json:"updated,omitempty"`
}

// Country returns the address country or "" when the record has no address.
func (u Unit) Country() string {
	if u.Address == nil {
		return ""
	}
	return u.Address.Country
}

// State returns the address state or "" when the record has no address.
func (u Unit) State() string {
	if u.Address == nil {
		return ""
	}
	return u.Address.State
}
