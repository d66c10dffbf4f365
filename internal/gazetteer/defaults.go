package gazetteer

// defaultEntries covers the Nordic core plus the major European hubs that
// dominate incident traffic. A deployment-specific GAZETTEER_PATH file
// replaces this list entirely; it is never merged.
var defaultEntries = []Entry{
	// Denmark
	{Name: "Copenhagen Airport", Lat: 55.6181, Lon: 12.6508, Country: "DK", AssetType: "airport",
		Aliases: []string{"Kastrup", "København Lufthavn", "CPH"}},
	{Name: "Billund Airport", Lat: 55.7403, Lon: 9.1518, Country: "DK", AssetType: "airport",
		Aliases: []string{"Billund Lufthavn", "BLL"}},
	{Name: "Aalborg Airport", Lat: 57.0928, Lon: 9.8492, Country: "DK", AssetType: "airport",
		Aliases: []string{"Aalborg Lufthavn", "AAL"}},
	{Name: "Skrydstrup Air Base", Lat: 55.2214, Lon: 9.2632, Country: "DK", AssetType: "military",
		Aliases: []string{"Flyvestation Skrydstrup"}},
	{Name: "Karup Air Base", Lat: 56.2975, Lon: 9.1246, Country: "DK", AssetType: "military",
		Aliases: []string{"Flyvestation Karup"}},
	{Name: "Port of Esbjerg", Lat: 55.4627, Lon: 8.4251, Country: "DK", AssetType: "harbor",
		Aliases: []string{"Esbjerg Havn"}},
	{Name: "Port of Aarhus", Lat: 56.1499, Lon: 10.2270, Country: "DK", AssetType: "harbor",
		Aliases: []string{"Aarhus Havn"}},
	{Name: "Copenhagen", Lat: 55.6761, Lon: 12.5683, Country: "DK", AssetType: "other",
		Aliases: []string{"København"}, LowPrecision: true},

	// Norway
	{Name: "Oslo Gardermoen Airport", Lat: 60.1976, Lon: 11.1004, Country: "NO", AssetType: "airport",
		Aliases: []string{"Gardermoen", "Oslo Lufthavn", "OSL"}},
	{Name: "Bergen Flesland Airport", Lat: 60.2936, Lon: 5.2181, Country: "NO", AssetType: "airport",
		Aliases: []string{"Flesland", "BGO"}},
	{Name: "Stavanger Sola Airport", Lat: 58.8767, Lon: 5.6378, Country: "NO", AssetType: "airport",
		Aliases: []string{"Sola", "SVG"}},
	{Name: "Ørland Air Station", Lat: 63.6988, Lon: 9.6040, Country: "NO", AssetType: "military",
		Aliases: []string{"Ørland hovedflystasjon"}},
	{Name: "Haakonsvern Naval Base", Lat: 60.3431, Lon: 5.2238, Country: "NO", AssetType: "military",
		Aliases: []string{"Haakonsvern orlogsstasjon"}},
	{Name: "Port of Oslo", Lat: 59.9050, Lon: 10.7380, Country: "NO", AssetType: "harbor",
		Aliases: []string{"Oslo Havn"}},
	{Name: "Oslo", Lat: 59.9139, Lon: 10.7522, Country: "NO", AssetType: "other", LowPrecision: true},

	// Sweden
	{Name: "Stockholm Arlanda Airport", Lat: 59.6498, Lon: 17.9238, Country: "SE", AssetType: "airport",
		Aliases: []string{"Arlanda", "ARN"}},
	{Name: "Gothenburg Landvetter Airport", Lat: 57.6628, Lon: 12.2798, Country: "SE", AssetType: "airport",
		Aliases: []string{"Landvetter", "GOT"}},
	{Name: "Malmö Airport", Lat: 55.5363, Lon: 13.3762, Country: "SE", AssetType: "airport",
		Aliases: []string{"Sturup", "MMX"}},
	{Name: "Karlskrona Naval Base", Lat: 56.1608, Lon: 15.5869, Country: "SE", AssetType: "military",
		Aliases: []string{"Örlogsbasen Karlskrona"}},
	{Name: "Port of Gothenburg", Lat: 57.6857, Lon: 11.8568, Country: "SE", AssetType: "harbor",
		Aliases: []string{"Göteborgs hamn"}},
	{Name: "Stockholm", Lat: 59.3293, Lon: 18.0686, Country: "SE", AssetType: "other", LowPrecision: true},

	// Finland
	{Name: "Helsinki-Vantaa Airport", Lat: 60.3172, Lon: 24.9633, Country: "FI", AssetType: "airport",
		Aliases: []string{"Helsinki-Vantaan lentoasema", "Vantaa", "HEL"}},
	{Name: "Rovaniemi Air Base", Lat: 66.5648, Lon: 25.8304, Country: "FI", AssetType: "military",
		Aliases: []string{"Rovaniemen lentoasema"}},
	{Name: "Port of Helsinki", Lat: 60.1489, Lon: 24.9583, Country: "FI", AssetType: "harbor",
		Aliases: []string{"Helsingin satama"}},
	{Name: "Helsinki", Lat: 60.1699, Lon: 24.9384, Country: "FI", AssetType: "other", LowPrecision: true},

	// Wider Europe (hubs that recur in cross-border reporting)
	{Name: "Amsterdam Schiphol Airport", Lat: 52.3105, Lon: 4.7683, Country: "NL", AssetType: "airport",
		Aliases: []string{"Schiphol", "AMS"}},
	{Name: "Frankfurt Airport", Lat: 50.0379, Lon: 8.5622, Country: "DE", AssetType: "airport",
		Aliases: []string{"Flughafen Frankfurt", "FRA"}},
	{Name: "Munich Airport", Lat: 48.3538, Lon: 11.7861, Country: "DE", AssetType: "airport",
		Aliases: []string{"Flughafen München", "MUC"}},
	{Name: "Brussels Airport", Lat: 50.9010, Lon: 4.4856, Country: "BE", AssetType: "airport",
		Aliases: []string{"Zaventem", "BRU"}},
	{Name: "Paris Charles de Gaulle Airport", Lat: 49.0097, Lon: 2.5479, Country: "FR", AssetType: "airport",
		Aliases: []string{"Roissy", "CDG"}},
	{Name: "London Gatwick Airport", Lat: 51.1537, Lon: -0.1821, Country: "GB", AssetType: "airport",
		Aliases: []string{"Gatwick", "LGW"}},
	{Name: "London Heathrow Airport", Lat: 51.4700, Lon: -0.4543, Country: "GB", AssetType: "airport",
		Aliases: []string{"Heathrow", "LHR"}},
	{Name: "Warsaw Chopin Airport", Lat: 52.1657, Lon: 20.9671, Country: "PL", AssetType: "airport",
		Aliases: []string{"Okęcie", "WAW"}},
	{Name: "Vilnius Airport", Lat: 54.6341, Lon: 25.2858, Country: "LT", AssetType: "airport",
		Aliases: []string{"VNO"}},
	{Name: "Riga Airport", Lat: 56.9236, Lon: 23.9711, Country: "LV", AssetType: "airport",
		Aliases: []string{"RIX"}},
	{Name: "Tallinn Airport", Lat: 59.4133, Lon: 24.8328, Country: "EE", AssetType: "airport",
		Aliases: []string{"Lennart Meri", "TLL"}},
	{Name: "Ramstein Air Base", Lat: 49.4369, Lon: 7.6003, Country: "DE", AssetType: "military"},
	{Name: "Port of Rotterdam", Lat: 51.9490, Lon: 4.1394, Country: "NL", AssetType: "harbor"},
	{Name: "Port of Hamburg", Lat: 53.5282, Lon: 9.9323, Country: "DE", AssetType: "harbor",
		Aliases: []string{"Hamburger Hafen"}},
	{Name: "Ringhals Nuclear Power Plant", Lat: 57.2597, Lon: 12.1108, Country: "SE", AssetType: "powerplant",
		Aliases: []string{"Ringhals"}},
	{Name: "Olkiluoto Nuclear Power Plant", Lat: 61.2367, Lon: 21.4406, Country: "FI", AssetType: "powerplant",
		Aliases: []string{"Olkiluoto"}},
	{Name: "Øresund Bridge", Lat: 55.5709, Lon: 12.8494, Country: "DK", AssetType: "bridge",
		Aliases: []string{"Öresundsbron", "Oresund Bridge"}},
	{Name: "Great Belt Bridge", Lat: 55.3419, Lon: 11.0342, Country: "DK", AssetType: "bridge",
		Aliases: []string{"Storebæltsbroen"}},
}
