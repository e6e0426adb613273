package places

import (
	"strings"
	"time"
)

// LatLng is a WGS84 coordinate.
type LatLng struct {
	Latitude  float64
	Longitude float64
}

// PlaceSummary is one text search hit.
type PlaceSummary struct {
	ExternalID  string
	Name        string
	Address     string
	Rating      *float64
	RatingCount int
	Location    *LatLng
	Types       []string
}

// PhotoRef names a provider photo; Name is the resource path used to fetch media.
type PhotoRef struct {
	Name               string
	WidthPx            int
	HeightPx           int
	AuthorAttributions []Attribution
}

type Attribution struct {
	DisplayName string
	URI         string
	PhotoURI    string
}

type Review struct {
	Name         string
	Rating       int
	Text         string
	Language     string
	RelativeTime string
	PublishedAt  *time.Time
	Author       Attribution
}

// TimePoint is a day (0 = Sunday) and time of day.
type TimePoint struct {
	Day    int
	Hour   int
	Minute int
}

// OpeningPeriod is an open interval; Close is nil for a business that never closes.
type OpeningPeriod struct {
	Open  TimePoint
	Close *TimePoint
}

type OpeningHours struct {
	OpenNow             *bool
	Periods             []OpeningPeriod
	WeekdayDescriptions []string
}

// Place is a normalised detail record.
type Place struct {
	ExternalID         string
	Name               string
	Address            string
	NationalPhone      string
	InternationalPhone string
	Website            string
	MapsURL            string
	Location           *LatLng
	Rating             *float64
	RatingCount        int
	Types              []string
	Photos             []PhotoRef
	Reviews            []Review
	Hours              *OpeningHours
	EditorialSummary   string
	BusinessStatus     string
	// Raw is the decoded provider payload, kept for structured metadata.
	Raw map[string]any
}

// Phone prefers the national format.
func (p *Place) Phone() string {
	if p.NationalPhone != "" {
		return p.NationalPhone
	}
	return p.InternationalPhone
}

// SearchPage is one page of text search results.
type SearchPage struct {
	Results       []PlaceSummary
	NextPageToken string
}

// ExtractID strips the resource prefix from a provider id.
func ExtractID(id string) string {
	return strings.TrimPrefix(id, resourcePrefix)
}

func resourceName(id string) string {
	if strings.HasPrefix(id, resourcePrefix) {
		return id
	}
	return resourcePrefix + id
}

// Wire shapes. Every field is optional on the provider side.

type wireError struct {
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

type wireText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode,omitempty"`
}

type wireLatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type wireAttribution struct {
	DisplayName string `json:"displayName"`
	URI         string `json:"uri,omitempty"`
	PhotoURI    string `json:"photoUri,omitempty"`
}

type wirePhoto struct {
	Name               string            `json:"name"`
	WidthPx            int               `json:"widthPx"`
	HeightPx           int               `json:"heightPx"`
	AuthorAttributions []wireAttribution `json:"authorAttributions,omitempty"`
}

type wireReview struct {
	Name                           string           `json:"name"`
	RelativePublishTimeDescription string           `json:"relativePublishTimeDescription,omitempty"`
	Rating                         int              `json:"rating"`
	Text                           *wireText        `json:"text,omitempty"`
	OriginalText                   *wireText        `json:"originalText,omitempty"`
	AuthorAttribution              *wireAttribution `json:"authorAttribution,omitempty"`
	PublishTime                    *string          `json:"publishTime,omitempty"`
}

type wireTimePoint struct {
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

type wirePeriod struct {
	Open  wireTimePoint  `json:"open"`
	Close *wireTimePoint `json:"close,omitempty"`
}

type wireOpeningHours struct {
	OpenNow             *bool        `json:"openNow,omitempty"`
	Periods             []wirePeriod `json:"periods,omitempty"`
	WeekdayDescriptions []string     `json:"weekdayDescriptions,omitempty"`
}

type wirePlace struct {
	ID                       string            `json:"id"`
	DisplayName              *wireText         `json:"displayName,omitempty"`
	FormattedAddress         *string           `json:"formattedAddress,omitempty"`
	NationalPhoneNumber      *string           `json:"nationalPhoneNumber,omitempty"`
	InternationalPhoneNumber *string           `json:"internationalPhoneNumber,omitempty"`
	WebsiteURI               *string           `json:"websiteUri,omitempty"`
	GoogleMapsURI            *string           `json:"googleMapsUri,omitempty"`
	Rating                   *float64          `json:"rating,omitempty"`
	UserRatingCount          *int              `json:"userRatingCount,omitempty"`
	Location                 *wireLatLng       `json:"location,omitempty"`
	Types                    []string          `json:"types,omitempty"`
	Photos                   []wirePhoto       `json:"photos,omitempty"`
	Reviews                  []wireReview      `json:"reviews,omitempty"`
	RegularOpeningHours      *wireOpeningHours `json:"regularOpeningHours,omitempty"`
	EditorialSummary         *wireText         `json:"editorialSummary,omitempty"`
	BusinessStatus           *string           `json:"businessStatus,omitempty"`
}

type wireSearchRequest struct {
	TextQuery    string `json:"textQuery"`
	PageSize     int    `json:"pageSize"`
	LanguageCode string `json:"languageCode"`
	RegionCode   string `json:"regionCode"`
	PageToken    string `json:"pageToken,omitempty"`
}

type wireSearchResponse struct {
	Places        []wirePlace `json:"places"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func text(t *wireText) string {
	if t == nil {
		return ""
	}
	return t.Text
}

func attribution(a *wireAttribution) Attribution {
	if a == nil {
		return Attribution{}
	}
	return Attribution{DisplayName: a.DisplayName, URI: a.URI, PhotoURI: a.PhotoURI}
}

func (w wirePlace) summary() PlaceSummary {
	s := PlaceSummary{
		ExternalID: ExtractID(w.ID),
		Name:       text(w.DisplayName),
		Address:    str(w.FormattedAddress),
		Rating:     w.Rating,
		Types:      w.Types,
	}
	if w.UserRatingCount != nil {
		s.RatingCount = *w.UserRatingCount
	}
	if w.Location != nil {
		s.Location = &LatLng{Latitude: w.Location.Latitude, Longitude: w.Location.Longitude}
	}
	return s
}

func (w wirePlace) place(raw map[string]any) *Place {
	s := w.summary()
	p := &Place{
		ExternalID:         s.ExternalID,
		Name:               s.Name,
		Address:            s.Address,
		NationalPhone:      str(w.NationalPhoneNumber),
		InternationalPhone: str(w.InternationalPhoneNumber),
		Website:            str(w.WebsiteURI),
		MapsURL:            str(w.GoogleMapsURI),
		Location:           s.Location,
		Rating:             s.Rating,
		RatingCount:        s.RatingCount,
		Types:              w.Types,
		EditorialSummary:   text(w.EditorialSummary),
		BusinessStatus:     str(w.BusinessStatus),
		Raw:                raw,
	}

	for _, ph := range w.Photos {
		ref := PhotoRef{Name: ph.Name, WidthPx: ph.WidthPx, HeightPx: ph.HeightPx}
		for i := range ph.AuthorAttributions {
			ref.AuthorAttributions = append(ref.AuthorAttributions, attribution(&ph.AuthorAttributions[i]))
		}
		p.Photos = append(p.Photos, ref)
	}

	for _, r := range w.Reviews {
		review := Review{
			Name:         r.Name,
			Rating:       r.Rating,
			Text:         text(r.Text),
			RelativeTime: r.RelativePublishTimeDescription,
			Author:       attribution(r.AuthorAttribution),
		}
		if review.Text == "" {
			review.Text = text(r.OriginalText)
		}
		if r.Text != nil {
			review.Language = r.Text.LanguageCode
		}
		if r.PublishTime != nil {
			if t, err := time.Parse(time.RFC3339, *r.PublishTime); err == nil {
				review.PublishedAt = &t
			}
		}
		p.Reviews = append(p.Reviews, review)
	}

	if h := w.RegularOpeningHours; h != nil {
		hours := &OpeningHours{OpenNow: h.OpenNow, WeekdayDescriptions: h.WeekdayDescriptions}
		for _, period := range h.Periods {
			op := OpeningPeriod{Open: TimePoint(period.Open)}
			if period.Close != nil {
				c := TimePoint(*period.Close)
				op.Close = &c
			}
			hours.Periods = append(hours.Periods, op)
		}
		p.Hours = hours
	}

	return p
}
