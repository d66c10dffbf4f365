package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dronewatch/incident-engine/internal/textproc"
)

// Verdict categories. Only "incident" proceeds to deduplication; the rest
// name why a report was turned away.
const (
	CategoryIncident   = "incident"
	CategoryPolicy     = "policy"
	CategoryDefense    = "defense"
	CategorySimulation = "simulation"
	CategoryDiscussion = "discussion"
	CategoryForeign    = "foreign" // produced by the geographic gate
	CategoryNotDrone   = "not_drone"
)

// Confidence model. Keyword rejections are confident; "discussion" is the
// deliberate low point so a configured AI adjudicator gets to reconsider
// borderline texts.
const (
	baseConfidence       = 0.8
	policeBonus          = 0.1
	airportBonus         = 0.05
	rejectConfidence     = 0.85
	noDroneConfidence    = 0.95
	discussionConfidence = 0.6
)

// Verdict is the classifier output for one report.
type Verdict struct {
	IsIncident bool
	Confidence float64
	Category   string
	Reason     string
}

// Classifier decides whether a text describes an actual drone incident, as
// opposed to policy news, defense posturing, drills, commercial uses or
// royal coverage. Immutable after construction, safe for concurrent use.
type Classifier struct {
	droneRE      *regexp.Regexp
	markerRE     *regexp.Regexp
	commercialRE *regexp.Regexp
	policyRE     *regexp.Regexp
	defenseRE    *regexp.Regexp
	simulationRE *regexp.Regexp
	policeRE     *regexp.Regexp
	airportRE    *regexp.Regexp
}

// Exact word forms only. A stem like "dron" would swallow Danish "dronning"
// (queen), which dominates Scandinavian royal coverage.
var droneWords = []string{
	"drone", "drones", "dronen", "droner", "droners", "dronerne",
	"dronare", "dronaren", // Swedish drönare, folded
	"drohne", "drohnen",
	"drooni", "droonit", "lennokki", "lennokit",
	"uav", "uavs", "uas",
	"quadcopter", "quadcopters", "multirotor",
	// Danish compounds, which never contain "drone" as a standalone word
	"droneforbud", "droneangreb", "droneobservation", "droneobservationer",
	"dronesag", "droneaktivitet",
}

// A report must carry at least one incident marker: someone saw something,
// something was disrupted, or someone responded.
var incidentMarkers = []string{
	// observation
	"sighted", "sightings", "sighting", "spotted", "observed", "seen",
	"detected", "filmed", "hovering", "circling", "reported",
	"opdaget", "observeret", "spottet", "oppdaget", "havaittu",
	// operational impact
	"closed", "closure", "shut", "shutdown", "diverted", "diversion",
	"suspended", "halted", "grounded", "cancelled", "canceled", "delayed",
	"disrupted", "evacuated",
	"lukket", "lukning", "indstillet", "aflyst", "omdirigeret",
	"stangd", "installt", "stengt", "innstilt", "suljettu", "peruttu",
	// response
	"investigating", "investigation", "police", "politi", "politiet",
	"authorities", "military", "forsvaret", "responded", "scrambled",
	"efterforskning", "efterforsker", "undersoger", "utreder", "tutkii",
	"beredskab",
}

// Disqualifiers, checked in this order. Royal coverage is the classic
// Danish false positive ("dronningen" shares headlines with droner).
var commercialWords = []string{
	"delivery", "deliveries", "levering", "leverans", "courier", "parcel",
	"drone show", "droneshow", "light show", "lysshow",
	"drone racing", "dronerace", "drone festival",
	"queen", "king", "royal", "dronning", "dronningen", "kong", "kongen",
	"kung", "kronprins", "monarch", "kongehuset",
}

var policyPhrases = []string{
	"ban", "banned", "droneforbud", "forbud",
	"drone wall", "dronemur", "drone-wall",
	"will impose", "giver nyt",
	"proposed", "proposes", "proposal", "legislation", "lovforslag",
	"regulation", "new rules",
	"announced plans", "announces plans",
	"eu presidency", "eu-formandskab",
	"in connection with eu presidency",
}

var defensePhrases = []string{
	"rushed to", "frigate", "fregat",
	"deployed to defend", "deployed to protect",
	"anti-drone", "antidrone", "counter-drone",
	"air defence", "air defense", "luftvern", "luftforsvar",
	"systems sent", "sends troops",
}

var simulationWords = []string{
	"exercise", "drill", "training", "simulation", "simulated", "mock",
	"rehearsal",
	"ovelse", "ovning", "harjoitus", "ubung", "oefening",
	"exercice", "simulacro", "esercitazione", "cwiczenia",
}

var policeWords = []string{
	"police", "politi", "politiet", "polisen", "polis", "poliisi",
}

var airportWords = []string{
	"airport", "airfield", "aerodrome", "runway",
	"lufthavn", "lufthavnen", "flygplats", "flygplatsen",
	"flyplass", "flyplassen",
	"lentoasema", "lentokentta", "flughafen",
}

// New compiles the keyword tables.
func New() *Classifier {
	return &Classifier{
		droneRE:      wordListRegexp(droneWords),
		markerRE:     wordListRegexp(incidentMarkers),
		commercialRE: wordListRegexp(commercialWords),
		policyRE:     wordListRegexp(policyPhrases),
		defenseRE:    wordListRegexp(defensePhrases),
		simulationRE: wordListRegexp(simulationWords),
		policeRE:     wordListRegexp(policeWords),
		airportRE:    wordListRegexp(airportWords),
	}
}

// Classify runs the keyword gates in cost order:
//
//  1. No drone vocabulary, or commercial/royal context → not_drone.
//  2. Policy, defense-posture or drill vocabulary → the matching category.
//  3. Drone word without any incident marker → discussion.
//  4. Otherwise it is an incident; police and airport mentions raise
//     confidence.
func (c *Classifier) Classify(title, narrative string) Verdict {
	folded := textproc.Fold(title + " " + narrative)

	if !c.droneRE.MatchString(folded) {
		return Verdict{
			Confidence: noDroneConfidence,
			Category:   CategoryNotDrone,
			Reason:     "no drone vocabulary",
		}
	}
	if m := c.commercialRE.FindString(folded); m != "" {
		return Verdict{
			Confidence: rejectConfidence,
			Category:   CategoryNotDrone,
			Reason:     fmt.Sprintf("commercial or royal context %q", m),
		}
	}
	if m := c.policyRE.FindString(folded); m != "" {
		return Verdict{
			Confidence: rejectConfidence,
			Category:   CategoryPolicy,
			Reason:     fmt.Sprintf("policy announcement %q", m),
		}
	}
	if m := c.defenseRE.FindString(folded); m != "" {
		return Verdict{
			Confidence: rejectConfidence,
			Category:   CategoryDefense,
			Reason:     fmt.Sprintf("defense posture %q", m),
		}
	}
	if m := c.simulationRE.FindString(folded); m != "" {
		return Verdict{
			Confidence: rejectConfidence,
			Category:   CategorySimulation,
			Reason:     fmt.Sprintf("exercise or drill %q", m),
		}
	}
	if !c.markerRE.MatchString(folded) {
		return Verdict{
			Confidence: discussionConfidence,
			Category:   CategoryDiscussion,
			Reason:     "drone vocabulary without observation, impact or response markers",
		}
	}

	confidence := baseConfidence
	var bonuses []string
	if c.policeRE.MatchString(folded) {
		confidence += policeBonus
		bonuses = append(bonuses, "police mention")
	}
	if c.airportRE.MatchString(folded) {
		confidence += airportBonus
		bonuses = append(bonuses, "airport mention")
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	reason := "drone vocabulary with incident markers"
	if len(bonuses) > 0 {
		reason += " (" + strings.Join(bonuses, ", ") + ")"
	}
	return Verdict{
		IsIncident: true,
		Confidence: confidence,
		Category:   CategoryIncident,
		Reason:     reason,
	}
}

func wordListRegexp(tokens []string) *regexp.Regexp {
	escaped := make([]string, len(tokens))
	for i, t := range tokens {
		escaped[i] = regexp.QuoteMeta(t)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(escaped, "|") + `)\b`)
}
