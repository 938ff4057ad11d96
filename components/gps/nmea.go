package gps

import (
	"fmt"
	"strings"

	"github.com/adrianmo/go-nmea"
	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
)

var errNoFix = errors.New("no position sentence in gps data")

// Fix is the position decoded from a chunk of receiver output.
type Fix struct {
	Point      *geo.Point
	Altitude   float64
	Satellites int64
	Valid      bool
}

func (f Fix) String() string {
	if f.Point == nil {
		return "none"
	}
	return fmt.Sprintf("lat=%.6f lng=%.6f alt=%.1f sats=%d valid=%t",
		f.Point.Lat(), f.Point.Lng(), f.Altitude, f.Satellites, f.Valid)
}

// ParseFix decodes the first GGA, RMC or GLL sentence found in `text`. Partial lines and
// sentences with bad checksums are skipped.
func ParseFix(text string) (Fix, error) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}
		s, err := nmea.Parse(line)
		if err != nil {
			continue
		}
		switch sentence := s.(type) {
		case nmea.GGA:
			return Fix{
				Point:      geo.NewPoint(sentence.Latitude, sentence.Longitude),
				Altitude:   sentence.Altitude,
				Satellites: sentence.NumSatellites,
				Valid:      sentence.FixQuality != nmea.Invalid,
			}, nil
		case nmea.RMC:
			return Fix{
				Point: geo.NewPoint(sentence.Latitude, sentence.Longitude),
				Valid: sentence.Validity == nmea.ValidRMC,
			}, nil
		case nmea.GLL:
			return Fix{
				Point: toPoint(sentence),
				Valid: sentence.Validity == nmea.ValidGLL,
			}, nil
		}
	}
	return Fix{}, errNoFix
}

// toPoint converts a nmea.GLL to a geo.Point.
func toPoint(a nmea.GLL) *geo.Point {
	return geo.NewPoint(a.Latitude, a.Longitude)
}
