package pipeline

// zoneCentroids holds approximate country centroids (latitude, longitude)
// for the solar-position night clamp. Zones absent from the table fall back
// to clamping disabled.
var zoneCentroids = map[string][2]float64{
	"AT": {47.6, 14.1},
	"BE": {50.6, 4.6},
	"CH": {46.8, 8.2},
	"CZ": {49.8, 15.5},
	"DE": {51.1, 10.4},
	"DK": {56.0, 9.5},
	"ES": {40.2, -3.6},
	"FR": {46.6, 2.5},
	"IT": {42.8, 12.1},
	"NL": {52.1, 5.3},
	"PL": {52.1, 19.4},
	"PT": {39.6, -8.0},
	"RO": {45.8, 25.0},
	"SE": {62.8, 16.7},
	"SK": {48.7, 19.5},
}
