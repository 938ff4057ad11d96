// Package gps reads raw NMEA text from a serial GPS receiver.
package gps

// SampleKind distinguishes the three outcomes of a location read.
type SampleKind int

const (
	// SampleValid carries text read from the receiver.
	SampleValid SampleKind = iota
	// SampleNoData means nothing was pending. This is the normal, frequent case.
	SampleNoData
	// SampleReadError means the driver reported a failed read.
	SampleReadError
)

// Sentinel texts that stand in for a reading.
const (
	NoDataText    = "No GPS Data"
	ReadErrorText = "GPS Error"
)

func (k SampleKind) String() string {
	switch k {
	case SampleValid:
		return "valid"
	case SampleNoData:
		return "no_data"
	case SampleReadError:
		return "read_error"
	default:
		return "unknown"
	}
}

// A Sample is one location reading. Text is the receiver's raw output for SampleValid and the
// matching sentinel otherwise.
type Sample struct {
	Kind SampleKind
	Text string
}

// NoData returns the "nothing pending" sample.
func NoData() Sample {
	return Sample{Kind: SampleNoData, Text: NoDataText}
}

// ReadError returns the "driver failure" sample.
func ReadError() Sample {
	return Sample{Kind: SampleReadError, Text: ReadErrorText}
}

func (s Sample) String() string {
	return s.Text
}
