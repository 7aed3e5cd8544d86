package datasets

import (
	"fmt"
	"path"
	"path/filepath"

	"go.nownabe.dev/dataload"
)

const tripFetchRetries = 3

// FHVTrips builds a dataset copying the monthly for-hire vehicle trip files
// to Parquet objects under "data/fhv". Run it with the data directory set to
// "data/fhv" to mirror the object layout locally. It is not loaded into a
// warehouse table.
func FHVTrips() *dataload.Dataset {
	return &dataload.Dataset{
		Name: "fhv_tripdata",
		URL: func(period string) string {
			return fmt.Sprintf(tlcDataURL, "fhv", "fhv_tripdata_"+period)
		},
		Parser: dataload.CSVParser(dataload.CSVOptions{InferTypes: true}),

		Formats:      []dataload.Format{dataload.FormatParquet},
		ObjectPrefix: "data/fhv",
	}
}

// TripObjectPath returns the bucket path of a monthly trip file, e.g.
// "data/yellow/yellow_tripdata_2019-02.parquet".
func TripObjectPath(color string, year, month int) string {
	return path.Join("data", color, fmt.Sprintf("%s_tripdata_%s.parquet", color, MonthPeriod(year, month)))
}

// TripTransfer builds a request appending a monthly trip file stored in
// bucket to table. The object is downloaded below dir.
func TripTransfer(bucket, dir, color string, year, month int, table string) dataload.TransferRequest {
	p := TripObjectPath(color, year, month)

	return dataload.TransferRequest{
		Dataset:     color + "_tripdata",
		Period:      MonthPeriod(year, month),
		ObjectURI:   dataload.Object{Bucket: bucket, Name: p}.FullPath(),
		LocalPath:   filepath.Join(dir, filepath.FromSlash(p)),
		Table:       table,
		Disposition: dataload.WriteAppend,
		Retries:     tripFetchRetries,
	}
}
