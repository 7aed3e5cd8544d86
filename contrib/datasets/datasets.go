// Package datasets provides pre-configured datasets for dataload.
package datasets

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"go.nownabe.dev/dataload"
)

const (
	fiftyHertzURL = "https://ds.50hertz.com/api/%s/DownloadFile?fileName=%s.csv"
	tlcDataURL    = "https://github.com/DataTalksClub/nyc-tlc-data/releases/download/%s/%s.csv.gz"
)

// fiftyHertzParser parses 50Hertz exports: four lines of preamble, a
// semicolon separated header and "-" for missing measurements.
func fiftyHertzParser() dataload.Parser {
	return dataload.CSVParser(dataload.CSVOptions{
		Comma:            ';',
		SkipLeadingLines: 4,
		NAValues:         []string{"-"},
	})
}

func fiftyHertzDownload(api string) func(string) string {
	return func(year string) string {
		return fmt.Sprintf(fiftyHertzURL, api, year)
	}
}

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// MonthPeriod formats a monthly period like "2019-01".
func MonthPeriod(year, month int) string {
	return fmt.Sprintf("%d-%02d", year, month)
}
