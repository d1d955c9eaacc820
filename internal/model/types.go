package model

import (
	"strings"
)

// Core domain types

// Place is a recorded restaurant or venue. An empty ID means the place has
// not been saved yet.
type Place struct {
	ID        string  `json:"id,omitempty"`
	Name      string  `json:"name"`
	Location  string  `json:"location,omitempty"` // free-text address
	Type      string  `json:"type,omitempty"`
	ImageData []byte  `json:"imageData,omitempty"`
	Rating    float64 `json:"rating"`
}

// Persisted reports whether the place has a store identity.
func (p Place) Persisted() bool { return p.ID != "" }

// PlaceInput is the writable part of a Place used by create and update.
type PlaceInput struct {
	Name      string  `json:"name"`
	Location  string  `json:"location,omitempty"`
	Type      string  `json:"type,omitempty"`
	ImageData []byte  `json:"imageData,omitempty"`
	Rating    float64 `json:"rating"`
}

const (
	MinRating = 0.0
	MaxRating = 5.0
)

// Normalize trims text fields and clamps the rating into [MinRating, MaxRating].
func (in PlaceInput) Normalize() PlaceInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Location = strings.TrimSpace(in.Location)
	in.Type = strings.TrimSpace(in.Type)
	if in.Rating < MinRating {
		in.Rating = MinRating
	}
	if in.Rating > MaxRating {
		in.Rating = MaxRating
	}
	return in
}

// Apply overwrites the fields of p in place.
func (in PlaceInput) Apply(p *Place) {
	p.Name = in.Name
	p.Location = in.Location
	p.Type = in.Type
	p.ImageData = in.ImageData
	p.Rating = in.Rating
}

// Input returns the writable fields of p.
func (p Place) Input() PlaceInput {
	return PlaceInput{Name: p.Name, Location: p.Location, Type: p.Type, ImageData: p.ImageData, Rating: p.Rating}
}

// SortKey selects the field places are ordered by.
type SortKey string

const (
	SortByRating SortKey = "rating"
	SortByName   SortKey = "name"
)

// ParseSortKey maps a query value to a SortKey; unknown values sort by name.
func ParseSortKey(s string) SortKey {
	if strings.EqualFold(strings.TrimSpace(s), string(SortByRating)) {
		return SortByRating
	}
	return SortByName
}

// Sort is a sort key plus direction.
type Sort struct {
	Key       SortKey `json:"key"`
	Ascending bool    `json:"ascending"`
}
