/*

Package dataload is a small ETL framework to fetch public datasets over HTTP,
clean them into typed tables, write Parquet and CSV files, upload them to
object storage and load them into BigQuery.

Getting started

Pre-configured datasets for 50Hertz solar and wind generation and NYC taxi
trips live in `go.nownabe.dev/dataload/contrib/datasets`.
To load your own feed, describe it as a Dataset and run it with a Pipeline.

	package main

	import (
		"context"
		"fmt"
		"os"

		"cloud.google.com/go/storage"
		"golang.org/x/text/encoding/unicode"

		"go.nownabe.dev/dataload"
	)

	func main() {
		ctx := context.Background()

		gcs, err := storage.NewClient(ctx)
		if err != nil {
			panic(err)
		}

		uploader, err := dataload.NewGCSUploader(gcs, dataload.GCSConfig{Bucket: "my-bucket"})
		if err != nil {
			panic(err)
		}

		warehouse, err := dataload.NewBigQueryLoader(ctx, dataload.BigQueryConfig{
			Project:  os.Getenv("BIGQUERY_PROJECT_ID"),
			Dataset:  "energy",
			Location: "US",
		})
		if err != nil {
			panic(err)
		}
		defer warehouse.Close()

		p, err := dataload.New(
			dataload.WithPrettyLogging(),
			dataload.WithUploader(uploader),
			dataload.WithWarehouse(warehouse),
		)
		if err != nil {
			panic(err)
		}

		ds := &dataload.Dataset{
			Name: "solar",
			URL: func(year string) string {
				return fmt.Sprintf("https://example.com/solar_%s.csv", year)
			},
			Encoding: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM),
			Parser: dataload.CSVParser(dataload.CSVOptions{
				Comma:            ';',
				SkipLeadingLines: 4,
				NAValues:         []string{"-"},
			}),
			Retries:         2,
			DropColumns:     []string{"bis"},
			Rename:          map[string]string{"MW": "solar_energy_mw"},
			DateTimeColumns: []string{"Datum", "von"},
			NumericColumns:  []string{"solar_energy_mw"},
			RequiredColumns: []string{"solar_energy_mw"},
			Order:           []string{dataload.TimestampColumn, "solar_energy_mw"},
			Table:           "solar_energy",
		}

		if _, err := p.Run(ctx, ds, "2023"); err != nil {
			os.Exit(1)
		}
	}

*/
package dataload
