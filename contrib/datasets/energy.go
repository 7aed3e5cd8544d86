package datasets

import (
	"go.nownabe.dev/dataload"
)

// Energy columns.
const (
	SolarEnergyMW        = "solar_energy_mw"
	WindEnergyTotalMW    = "wind_energy_total_mw"
	WindEnergyOnshoreMW  = "wind_energy_onshore_mw"
	WindEnergyOffshoreMW = "wind_energy_offshore_mw"
)

const fiftyHertzFetchRetries = 2

// SolarEnergy builds a dataset for the 50Hertz photovoltaic feed loaded into table.
func SolarEnergy(table string) *dataload.Dataset {
	return &dataload.Dataset{
		Name:     "solar",
		URL:      fiftyHertzDownload("PhotovoltaicActual"),
		Encoding: utf16LE,
		Parser:   fiftyHertzParser(),
		Retries:  fiftyHertzFetchRetries,

		DropColumns:     []string{"bis"},
		Rename:          map[string]string{"MW": SolarEnergyMW},
		DateTimeColumns: []string{"Datum", "von"},
		NumericColumns:  []string{SolarEnergyMW},
		RequiredColumns: []string{SolarEnergyMW},
		Order:           []string{dataload.TimestampColumn, SolarEnergyMW},

		Table: table,
	}
}

// WindEnergy builds a dataset for the 50Hertz wind power feed loaded into table.
func WindEnergy(table string) *dataload.Dataset {
	measures := []string{WindEnergyTotalMW, WindEnergyOnshoreMW, WindEnergyOffshoreMW}

	return &dataload.Dataset{
		Name:     "wind",
		URL:      fiftyHertzDownload("WindPowerActual"),
		Encoding: utf16LE,
		Parser:   fiftyHertzParser(),
		Retries:  fiftyHertzFetchRetries,

		// The export ends every line with a separator, which adds a blank column.
		DropColumns: []string{"bis", "Unnamed: 6"},
		Rename: map[string]string{
			"MW":          WindEnergyTotalMW,
			"Onshore MW":  WindEnergyOnshoreMW,
			"Offshore MW": WindEnergyOffshoreMW,
		},
		DateTimeColumns: []string{"Datum", "Von"},
		NumericColumns:  measures,
		RequiredColumns: measures,
		Order: []string{
			dataload.TimestampColumn,
			WindEnergyOnshoreMW,
			WindEnergyOffshoreMW,
			WindEnergyTotalMW,
		},

		Table: table,
	}
}
