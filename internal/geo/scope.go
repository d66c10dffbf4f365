package geo

import (
	"fmt"
	"strings"
)

// Scope is one deployable geographic configuration: a bounding box plus the
// keyword sets that separate in-scope incidents from foreign ones. Two
// scopes ship built in; which one runs is a deployment choice, never a
// code change.
type Scope struct {
	Name   string
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64

	foreignTokens []string // incident locations that are out of scope
	contextTokens []string // markers of local commentary on foreign events
}

// Contains reports whether a coordinate falls inside the scope bounds.
func (s Scope) Contains(lat, lon float64) bool {
	return lat >= s.MinLat && lat <= s.MaxLat && lon >= s.MinLon && lon <= s.MaxLon
}

// ScopeByName resolves the GEO_SCOPE configuration value.
func ScopeByName(name string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "european":
		return EuropeanScope(), nil
	case "nordic":
		return NordicScope(), nil
	default:
		return Scope{}, fmt.Errorf("unknown geographic scope %q (want european or nordic)", name)
	}
}

// EuropeanScope covers the continent: lat 35..71, lon -10..31.
func EuropeanScope() Scope {
	return Scope{
		Name:   "european",
		MinLat: 35, MaxLat: 71,
		MinLon: -10, MaxLon: 31,
		foreignTokens: foreignWorld,
		contextTokens: contextMarkers,
	}
}

// NordicScope narrows to Denmark, Norway, Sweden and Finland. Everything the
// European scope calls foreign stays foreign; the rest of Europe joins the
// foreign list.
func NordicScope() Scope {
	tokens := make([]string, 0, len(foreignWorld)+len(foreignEurope))
	tokens = append(tokens, foreignWorld...)
	tokens = append(tokens, foreignEurope...)
	return Scope{
		Name:   "nordic",
		MinLat: 54, MaxLat: 71.5,
		MinLon: 4, MaxLon: 32,
		foreignTokens: tokens,
		contextTokens: contextMarkers,
	}
}

// foreignWorld lists places whose mention as an incident location puts the
// report out of scope. Plain place names only: country adjectives such as
// "russian" stay off this list, because "suspected Russian drones over
// Kastrup" is an in-scope incident.
var foreignWorld = []string{
	// Russia / Ukraine war zone
	"kyiv", "kiev", "kharkiv", "odesa", "odessa", "lviv", "dnipro",
	"donbas", "donetsk", "luhansk", "mariupol", "zaporizhzhia", "kherson",
	"crimea", "sevastopol", "moscow", "moskva", "st petersburg",
	"belgorod", "bryansk", "kursk", "rostov",
	// Middle East
	"gaza", "rafah", "west bank", "tel aviv", "jerusalem", "israel",
	"beirut", "lebanon", "damascus", "syria", "tehran", "iran", "isfahan",
	"baghdad", "iraq", "yemen", "sanaa", "riyadh", "saudi arabia",
	"jeddah", "abu dhabi", "dubai", "qatar", "doha", "kuwait",
	// Asia
	"kashmir", "pakistan", "islamabad", "india", "new delhi", "mumbai",
	"china", "beijing", "shanghai", "taiwan", "taipei",
	"north korea", "south korea", "seoul", "pyongyang", "japan", "tokyo",
	"myanmar", "afghanistan", "kabul", "thailand", "bangkok",
	"philippines", "manila",
	// Americas
	"united states", "washington", "new york", "california", "texas",
	"florida", "canada", "toronto", "mexico", "brazil", "sao paulo",
	"venezuela", "caracas", "colombia", "bogota", "argentina",
	// Africa
	"libya", "tripoli", "sudan", "khartoum", "somalia", "mogadishu",
	"mali", "bamako", "nigeria", "abuja", "ethiopia", "addis ababa",
	"kenya", "nairobi", "morocco", "algeria", "algiers", "egypt", "cairo",
	"tunisia",
	// Oceania
	"australia", "sydney", "melbourne", "new zealand", "auckland",
}

// foreignEurope extends the foreign list for the Nordic scope only.
var foreignEurope = []string{
	"germany", "berlin", "munich", "hamburg", "frankfurt",
	"france", "paris", "marseille",
	"united kingdom", "london", "britain", "scotland", "manchester",
	"poland", "warsaw", "krakow",
	"spain", "madrid", "barcelona",
	"italy", "rome", "milan",
	"netherlands", "amsterdam", "rotterdam",
	"belgium", "brussels", "antwerp",
	"austria", "vienna", "switzerland", "zurich", "geneva",
	"czech republic", "prague", "hungary", "budapest",
	"romania", "bucharest", "bulgaria", "sofia",
	"greece", "athens", "portugal", "lisbon", "ireland", "dublin",
	"estonia", "tallinn", "latvia", "riga", "lithuania", "vilnius",
	"ukraine",
}

// contextMarkers indicate local commentary about a foreign event: an
// in-scope government, ministry or institution reacting rather than an
// incident happening here. Folded forms (æ→ae, ø→o) because the analyzer
// scans folded text.
var contextMarkers = []string{
	"nordic", "scandinavia", "scandinavian", "baltic",
	"nato", "european union",
	"denmark", "danish", "danmark", "dansk",
	"norway", "norwegian", "norge", "norsk",
	"sweden", "swedish", "sverige", "svensk",
	"finland", "finnish", "suomi",
	"minister", "ministry", "ministerium",
	"udenrigsminister", "forsvarsminister", "statsminister",
	"regering", "regjering", "government",
	"folketing", "storting", "riksdag", "eduskunta",
	"statement", "condemn", "condemns", "condemned",
	"reacts", "reaction", "response", "responds", "comments",
	"udtalelse", "uttalelse", "fordommer",
}
