package dedup

import "github.com/dronewatch/incident-engine/pkg/models"

// Tier-1 candidate window: how far around the new report the store is asked
// for recent incidents.
const (
	Tier1WindowHours  = 48
	Tier1RadiusMeters = 1000
)

// MergeRadiusMeters is the spatial-fallback radius per asset type, the one
// authoritative copy of the table. Airports and bases sprawl; bridges do
// not.
func MergeRadiusMeters(assetType string) float64 {
	switch assetType {
	case models.AssetAirport, models.AssetMilitary:
		return 3000
	case models.AssetHarbor:
		return 1500
	case models.AssetPowerplant:
		return 1000
	default:
		return 500
	}
}
