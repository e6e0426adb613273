package importer

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/places"
)

const apiVersion = "places_v1"

// fullMetadataKeys are copied verbatim from the provider payload on import.
var fullMetadataKeys = map[string]string{
	"adrFormatAddress":    "adr_address",
	"priceLevel":          "price_level",
	"utcOffsetMinutes":    "utc_offset_minutes",
	"currentOpeningHours": "current_opening_hours",
}

var serviceOptionKeys = map[string]string{
	"curbsidePickup": "curbside_pickup",
	"delivery":       "delivery",
	"dineIn":         "dine_in",
	"reservable":     "reservable",
	"takeout":        "takeout",
}

var servesKeys = map[string]string{
	"servesBreakfast":      "serves_breakfast",
	"servesBrunch":         "serves_brunch",
	"servesLunch":          "serves_lunch",
	"servesDinner":         "serves_dinner",
	"servesBeer":           "serves_beer",
	"servesWine":           "serves_wine",
	"servesVegetarianFood": "serves_vegetarian_food",
}

// buildMetadata keeps the provider blob the directory shows but does not model.
func buildMetadata(place *places.Place, profile Profile, photosPersisted int, now time.Time) map[string]any {
	md := map[string]any{
		"photo_names":       photoNames(place.Photos),
		"types":             place.Types,
		"google_maps_url":   place.MapsURL,
		"business_status":   place.BusinessStatus,
		"editorial_summary": raw(place, "editorialSummary"),
		"reviews":           reviewMetadata(place.Reviews, profile.Recovery),
		"fetched_at":        now.UTC().Format(time.RFC3339),
		"api_version":       apiVersion,
	}
	if place.Hours != nil {
		md["opening_hours_text"] = place.Hours.WeekdayDescriptions
		md["opening_hours_periods"] = raw(place, "regularOpeningHours", "periods")
	}

	if profile.Recovery {
		md["recovery_mode"] = true
		return md
	}

	for from, to := range fullMetadataKeys {
		if v := raw(place, from); v != nil {
			md[to] = v
		}
	}
	if len(place.Types) > 0 {
		md["primary_type"] = place.Types[0]
	}
	if place.Hours != nil {
		md["opening_hours_open_now"] = place.Hours.OpenNow
	}
	md["photos_persisted"] = photosPersisted
	md["total_photos_available"] = len(place.Photos)
	md["total_reviews_fetched"] = len(place.Reviews)
	md["address_components"] = addressComponents(place)
	md["service_options"] = pick(place, serviceOptionKeys)
	for k, v := range pick(place, servesKeys) {
		md[k] = v
	}
	md["accessibility"] = map[string]any{
		"wheelchair_accessible_entrance": raw(place, "accessibilityOptions", "wheelchairAccessibleEntrance"),
	}
	md["data_completeness"] = map[string]bool{
		"has_photos":      len(place.Photos) > 0,
		"has_reviews":     len(place.Reviews) > 0,
		"has_hours":       place.Hours != nil && len(place.Hours.Periods) > 0,
		"has_website":     place.Website != "",
		"has_phone":       place.Phone() != "",
		"has_description": place.EditorialSummary != "",
	}
	return md
}

func photoNames(photos []places.PhotoRef) []map[string]any {
	out := make([]map[string]any, 0, len(photos))
	for _, p := range photos {
		out = append(out, map[string]any{
			"name":     p.Name,
			"widthPx":  p.WidthPx,
			"heightPx": p.HeightPx,
		})
	}
	return out
}

func reviewMetadata(reviews []places.Review, reduced bool) []map[string]any {
	out := make([]map[string]any, 0, len(reviews))
	for _, r := range reviews {
		m := map[string]any{
			"author_name": r.Author.DisplayName,
			"rating":      r.Rating,
			"text":        r.Text,
		}
		if r.PublishedAt != nil {
			m["publish_time"] = r.PublishedAt.Format(time.RFC3339)
		}
		if !reduced {
			m["name"] = r.Name
			m["author_url"] = r.Author.URI
			m["profile_photo_url"] = r.Author.PhotoURI
			m["relative_time_description"] = r.RelativeTime
			m["language"] = r.Language
		}
		out = append(out, m)
	}
	return out
}

func addressComponents(place *places.Place) []map[string]any {
	list, _ := raw(place, "addressComponents").([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		c, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, map[string]any{
			"long_name":  c["longText"],
			"short_name": c["shortText"],
			"types":      c["types"],
		})
	}
	return out
}

func pick(place *places.Place, keys map[string]string) map[string]any {
	out := make(map[string]any, len(keys))
	for from, to := range keys {
		out[to] = raw(place, from)
	}
	return out
}

// raw walks the provider payload along path, returning nil when any step is missing.
func raw(place *places.Place, path ...string) any {
	var cur any = place.Raw
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}
