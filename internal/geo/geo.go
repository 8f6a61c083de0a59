package geo

import (
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Result carries the fields the click pipeline stores. Country is the
// two-letter ISO code, which is also what geo redirect rules match against.
type Result struct {
	Country string
	City    string
}

type Reader struct {
	db *maxminddb.Reader
}

// Open opens a MaxMind .mmdb file. Returns a no-op Reader if path is empty,
// so lookups degrade to empty results instead of failing the pipeline.
func Open(path string) (*Reader, error) {
	if path == "" {
		return &Reader{}, nil
	}
	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Close() {
	if r != nil && r.db != nil {
		r.db.Close()
	}
}

// Lookup resolves an IP to country/city. Returns empty Result on any
// failure; a missing geo database never blocks a redirect.
func (r *Reader) Lookup(ipStr string) Result {
	if r == nil || r.db == nil {
		return Result{}
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Result{}
	}

	var record struct {
		Country struct {
			ISOCode string `maxminddb:"iso_code"`
		} `maxminddb:"country"`
		City struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"city"`
	}

	if err := r.db.Lookup(ip, &record); err != nil {
		return Result{}
	}

	return Result{
		Country: record.Country.ISOCode,
		City:    record.City.Names["en"],
	}
}
