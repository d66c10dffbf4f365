package dedup

// synonyms maps multilingual variants to one canonical token so titles in
// different languages about the same event overlap. Keys are folded forms
// (ø→o, ä→a); values are the canonical English token.
var synonyms = buildSynonyms(map[string][]string{
	"drone": {
		"drones", "dronen", "droner", "droners", "dronerne", "dron",
		"dronare", "dronaren", "drohne", "drohnen", "drooni", "droonit",
		"uav", "uavs", "uas", "quadcopter", "quadcopters", "multirotor",
	},
	"airport": {
		"airports", "airfield", "aerodrome", "lufthavn", "lufthavnen",
		"flygplats", "flygplatsen", "flyplass", "flyplassen",
		"lentoasema", "lentokentta", "flughafen",
		"aeroport", "aeropuerto", "aeroporto",
	},
	"closed": {
		"close", "closes", "closure", "shut", "shutdown",
		"lukket", "lukker", "lukning", "stangd", "stanger",
		"stengt", "stenger", "suljettu", "geschlossen",
	},
	"military": {
		"militaer", "militar", "militaert", "airbase",
		"flyvestation", "flybase",
	},
	"harbor": {
		"harbour", "port", "havn", "havnen", "hamn", "hamnen", "satama",
	},
	"police": {
		"politi", "politiet", "polis", "polisen", "poliisi",
	},
	"sighted": {
		"sighting", "sightings", "seen", "spotted", "observed",
		"observeret", "opdaget", "oppdaget", "havaittu",
	},
	"suspended": {
		"halted", "grounded", "diverted", "indstillet", "innstilt",
	},
})

func buildSynonyms(groups map[string][]string) map[string]string {
	table := make(map[string]string)
	for canon, variants := range groups {
		for _, v := range variants {
			table[v] = canon
		}
	}
	return table
}

// stopwords are function words carrying no event identity, dropped before
// comparison. Folded forms across the in-scope languages.
var stopwords = map[string]bool{
	// English
	"the": true, "a": true, "an": true, "at": true, "in": true, "on": true,
	"of": true, "to": true, "for": true, "after": true, "before": true,
	"over": true, "above": true, "near": true, "from": true, "with": true,
	"by": true, "and": true, "as": true, "down": true, "up": true,
	// Danish / Norwegian
	"i": true, "pa": true, "ved": true, "efter": true, "etter": true,
	"og": true, "en": true, "et": true, "den": true, "det": true,
	"til": true, "fra": true, "med": true, "af": true, "av": true,
	"om": true, "har": true, "er": true,
	// Swedish
	"vid": true, "och": true, "ett": true, "till": true, "fran": true,
	// Finnish
	"ja": true, "yli": true,
	// German
	"der": true, "die": true, "das": true, "im": true, "am": true,
	"uber": true, "nach": true, "und": true, "bei": true,
}
