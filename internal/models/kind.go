package models

import "fmt"

// Kind tags one family of reservable records.
type Kind string

const (
	KindCarRental Kind = "car_rental"
	KindHotel     Kind = "hotel"
	KindExcursion Kind = "excursion"
)

// KindSchema describes how a Kind maps onto its table. The reservation
// repository is written once against this descriptor.
type KindSchema struct {
	Kind  Kind
	Table string
	// Label is used in status messages ("Hotel 3 successfully booked.").
	Label string
	// IDArg is the tool argument carrying the row id.
	IDArg string
	// TextColumns are matched with LIKE %value% when the argument of the same name is set.
	TextColumns []string
	// KeywordColumn, when set, is matched against a comma-separated keyword list (OR-ed).
	KeywordColumn string
	// RangeArgs are date-range arguments accepted by search but not applied.
	RangeArgs []string
	// PriceTier marks kinds whose search also accepts an unapplied price_tier argument.
	PriceTier bool
	// UpdateColumns are the columns update may set, in statement order.
	UpdateColumns []string
}

var schemas = map[Kind]KindSchema{
	KindCarRental: {
		Kind:          KindCarRental,
		Table:         "car_rentals",
		Label:         "Car rental",
		IDArg:         "rental_id",
		TextColumns:   []string{"location", "name"},
		RangeArgs:     []string{"start_date", "end_date"},
		PriceTier:     true,
		UpdateColumns: []string{"start_date", "end_date"},
	},
	KindHotel: {
		Kind:          KindHotel,
		Table:         "hotels",
		Label:         "Hotel",
		IDArg:         "hotel_id",
		TextColumns:   []string{"location", "name"},
		RangeArgs:     []string{"checkin_date", "checkout_date"},
		PriceTier:     true,
		UpdateColumns: []string{"checkin_date", "checkout_date"},
	},
	KindExcursion: {
		Kind:          KindExcursion,
		Table:         "trip_recommendations",
		Label:         "Trip recommendation",
		IDArg:         "recommendation_id",
		TextColumns:   []string{"location", "name"},
		KeywordColumn: "keywords",
		UpdateColumns: []string{"details"},
	},
}

// Kinds lists every known kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindCarRental, KindHotel, KindExcursion}
}

// SchemaFor returns the descriptor of a kind.
func SchemaFor(kind Kind) (KindSchema, error) {
	s, ok := schemas[kind]
	if !ok {
		return KindSchema{}, fmt.Errorf("unknown kind %q", kind)
	}
	return s, nil
}

// Updatable reports whether column may be written by update.
func (s KindSchema) Updatable(column string) bool {
	for _, c := range s.UpdateColumns {
		if c == column {
			return true
		}
	}
	return false
}
