// Package model holds the documents served by the marketplace backend.
package model

// Order is a freight order placed by a shipper.
type Order struct {
	ID          string             `json:"id,omitempty"`
	Owner       string             `json:"owner,omitempty"`
	Status      string             `json:"status,omitempty"`
	Title       string             `json:"title,omitempty"`
	Origin      Ref[Location]      `json:"origin"`
	Destination Ref[Location]      `json:"destination"`
	LoadType    Ref[LoadType]      `json:"loadType"`
	Packages    []Ref[LoadPackage] `json:"packages,omitempty"`
	Weight      float64            `json:"weight"`
	Price       float64            `json:"price"`
}

func (o Order) GetID() string { return o.ID }

// Truck is a vehicle offered by a carrier.
type Truck struct {
	ID          string                `json:"id,omitempty"`
	Owner       string                `json:"owner,omitempty"`
	Status      string                `json:"status,omitempty"`
	Plate       string                `json:"plate,omitempty"`
	Country     string                `json:"country,omitempty"`
	Capacity    float64               `json:"capacity"`
	LoadTypes   []Ref[TruckLoadType]  `json:"loadTypes,omitempty"`
	Options     []Ref[TruckOption]    `json:"options,omitempty"`
	PricingType Ref[TruckPricingType] `json:"pricingType"`
}

func (t Truck) GetID() string { return t.ID }

// Profile is the profile of the signed in user.
type Profile struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
}

func (p Profile) GetID() string { return p.ID }

// Location is a place returned by the location search.
type Location struct {
	ID      string  `json:"id,omitempty"`
	Name    string  `json:"name,omitempty"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func (l Location) GetID() string { return l.ID }

// Dictionary resources share one shape.
type (
	LoadType         = Entry
	LoadPackage      = Entry
	TruckOption      = Entry
	TruckLoadType    = Entry
	TruckPricingType = Entry
)

// Entry is an item of a backend dictionary.
type Entry struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Code  string `json:"code,omitempty"`
	Order int    `json:"order,omitempty"`
}

func (e Entry) GetID() string { return e.ID }
