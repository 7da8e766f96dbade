package entsoe

import "fmt"

// EIC area codes for the bidding zones the pipeline supports. National zones
// only; multi-zone countries use the zone covering their main market.
var zoneEIC = map[string]string{
	"AT": "10YAT-APG------L",
	"BE": "10YBE----------2",
	"CH": "10YCH-SWISSGRIDZ",
	"CZ": "10YCZ-CEPS-----N",
	"DE": "10Y1001A1001A83F",
	"DK": "10Y1001A1001A65H",
	"ES": "10YES-REE------0",
	"FR": "10YFR-RTE------C",
	"IT": "10YIT-GRTN-----B",
	"NL": "10YNL----------L",
	"PL": "10YPL-AREA-----S",
	"PT": "10YPT-REN------W",
	"RO": "10YRO-TEL------P",
	"SE": "10YSE-1--------K",
	"SK": "10YSK-SEPS-----K",
}

// ZoneEIC returns the EIC area code for a two-letter zone.
func ZoneEIC(zone string) (string, error) {
	code, ok := zoneEIC[zone]
	if !ok {
		return "", fmt.Errorf("entsoe: unknown zone %q", zone)
	}
	return code, nil
}

// Zones returns the supported two-letter zone codes.
func Zones() []string {
	out := make([]string, 0, len(zoneEIC))
	for z := range zoneEIC {
		out = append(out, z)
	}
	return out
}

// PSR type codes used in generation and capacity documents.
const (
	PSRBiomass             = "B01"
	PSRFossilBrownCoal     = "B02"
	PSRFossilCoalGas       = "B03"
	PSRFossilGas           = "B04"
	PSRFossilHardCoal      = "B05"
	PSRFossilOil           = "B06"
	PSRFossilOilShale      = "B07"
	PSRFossilPeat          = "B08"
	PSRGeothermal          = "B09"
	PSRHydroPumpedStorage  = "B10"
	PSRHydroRunOfRiver     = "B11"
	PSRHydroWaterReservoir = "B12"
	PSRMarine              = "B13"
	PSRNuclear             = "B14"
	PSROtherRenewable      = "B15"
	PSRSolar               = "B16"
	PSRWaste               = "B17"
	PSRWindOffshore        = "B18"
	PSRWindOnshore         = "B19"
	PSROther               = "B20"
)

// psrNames maps PSR type codes to the production type names used by the
// Transparency Platform UI and by the carrier mapping.
var psrNames = map[string]string{
	PSRBiomass:             "Biomass",
	PSRFossilBrownCoal:     "Fossil Brown coal/Lignite",
	PSRFossilCoalGas:       "Fossil Coal-derived gas",
	PSRFossilGas:           "Fossil Gas",
	PSRFossilHardCoal:      "Fossil Hard coal",
	PSRFossilOil:           "Fossil Oil",
	PSRFossilOilShale:      "Fossil Oil shale",
	PSRFossilPeat:          "Fossil Peat",
	PSRGeothermal:          "Geothermal",
	PSRHydroPumpedStorage:  "Hydro Pumped Storage",
	PSRHydroRunOfRiver:     "Hydro Run-of-river and poundage",
	PSRHydroWaterReservoir: "Hydro Water Reservoir",
	PSRMarine:              "Marine",
	PSRNuclear:             "Nuclear",
	PSROtherRenewable:      "Other renewable",
	PSRSolar:               "Solar",
	PSRWaste:               "Waste",
	PSRWindOffshore:        "Wind Offshore",
	PSRWindOnshore:         "Wind Onshore",
	PSROther:               "Other",
}

// PSRName returns the production type name for a PSR code. Unknown codes are
// returned unchanged so they stay visible in downstream tables.
func PSRName(code string) string {
	if name, ok := psrNames[code]; ok {
		return name
	}
	return code
}
