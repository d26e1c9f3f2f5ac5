package sgp4

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// LineLength is the fixed NORAD TLE record length.
const LineLength = 69

type parsedFields struct {
	epoch      time.Time
	modelEpoch time.Time
	catalog    int
}

// floatField is a numeric TLE field as go-satellite extracts it. prepare
// must produce exactly the string the library hands to strconv.
type floatField struct {
	name    string
	line    int
	prepare func(line string) string
}

// stripSpaces matches the library's strings.Replace(s, " ", "", 2).
func stripSpaces(s string) string {
	return strings.Replace(s, " ", "", 2)
}

// impliedDecimal expands the "SMMMMMEE" notation used for the second
// derivative of mean motion and B*: " 38778-4" is 0.38778e-4.
func impliedDecimal(lo int) func(string) string {
	return func(line string) string {
		return stripSpaces(line[lo:lo+1] + "." + line[lo+1:lo+6] + "e" + line[lo+6:lo+8])
	}
}

func columns(lo, hi int) func(string) string {
	return func(line string) string { return stripSpaces(line[lo:hi]) }
}

var floatFields = []floatField{
	{name: "epoch day", line: 1, prepare: func(l string) string { return l[20:32] }},
	{name: "mean motion first derivative", line: 1, prepare: columns(33, 43)},
	{name: "mean motion second derivative", line: 1, prepare: impliedDecimal(44)},
	{name: "bstar drag term", line: 1, prepare: impliedDecimal(53)},
	{name: "inclination", line: 2, prepare: columns(8, 16)},
	{name: "right ascension of ascending node", line: 2, prepare: columns(17, 25)},
	{name: "eccentricity", line: 2, prepare: func(l string) string { return "." + l[26:33] }},
	{name: "argument of perigee", line: 2, prepare: columns(34, 42)},
	{name: "mean anomaly", line: 2, prepare: columns(43, 51)},
	{name: "mean motion", line: 2, prepare: columns(52, 63)},
}

// checkFields validates every field the propagator parses. Both lines must
// be LineLength long.
func checkFields(line1, line2 string) (parsedFields, error) {
	var out parsedFields

	if line1[0] != '1' {
		return out, &IngestError{Field: "line 1 number", Reason: fmt.Sprintf("must be '1', got %q", line1[0])}
	}
	if line2[0] != '2' {
		return out, &IngestError{Field: "line 2 number", Reason: fmt.Sprintf("must be '2', got %q", line2[0])}
	}

	cat1, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	if err != nil {
		return out, &IngestError{Field: "line 1 catalog number", Reason: fmt.Sprintf("%q is not an integer", line1[2:7])}
	}
	cat2, err := strconv.Atoi(strings.TrimSpace(line2[2:7]))
	if err != nil {
		return out, &IngestError{Field: "line 2 catalog number", Reason: fmt.Sprintf("%q is not an integer", line2[2:7])}
	}
	if cat1 != cat2 {
		return out, &IngestError{Field: "catalog number", Reason: fmt.Sprintf("line 1 has %d, line 2 has %d", cat1, cat2)}
	}
	out.catalog = cat1

	year, err := strconv.Atoi(line1[18:20])
	if err != nil || year < 0 {
		return out, &IngestError{Field: "epoch year", Reason: fmt.Sprintf("%q is not a two-digit year", line1[18:20])}
	}

	values := make(map[string]float64, len(floatFields))
	for _, f := range floatFields {
		line := line1
		if f.line == 2 {
			line = line2
		}
		s := f.prepare(line)
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return out, &IngestError{Field: f.name, Reason: fmt.Sprintf("%q is not a number", s)}
		}
		values[f.name] = v
	}

	epoch, err := epochFromFields(year, values["epoch day"])
	if err != nil {
		return out, &IngestError{Field: "epoch day", Reason: err.Error()}
	}
	out.epoch = epoch
	out.modelEpoch = modelEpoch(epoch.Year(), values["epoch day"])

	if values["mean motion"] <= 0 {
		return out, &IngestError{Field: "mean motion", Reason: "must be positive"}
	}

	return out, nil
}

// epochFromFields converts a TLE epoch (two-digit year, fractional day of
// year) to UTC. Year 57-99 is 19xx, 00-56 is 20xx.
func epochFromFields(year int, dayOfYear float64) (time.Time, error) {
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	// go-satellite walks its month table past December for a day beyond
	// the year's length, and treats every fourth year as leap.
	days := 365.0
	if year%4 == 0 {
		days = 366
	}
	if dayOfYear < 1 || math.Floor(dayOfYear) > days {
		return time.Time{}, fmt.Errorf("day of year %v out of range", dayOfYear)
	}

	// dayOfYear is 1-based: day 1.0 = Jan 1 00:00.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}

// modelEpoch is the instant go-satellite measures elapsed time from. It
// splits the epoch day into calendar fields with the same floating-point
// steps as the library and drops the fractional second, so it can precede
// the TLE epoch by up to a second. year is four-digit.
func modelEpoch(year int, dayOfYear float64) time.Time {
	months := [12]float64{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	if year%4 == 0 {
		months[1] = 29
	}

	day := math.Floor(dayOfYear)
	mon, elapsed := 0, 0.0
	for mon < 11 && day > elapsed+months[mon] {
		elapsed += months[mon]
		mon++
	}

	hr := (dayOfYear - day) * 24.0
	h := math.Floor(hr)
	mi := (hr - h) * 60.0
	m := math.Floor(mi)
	sec := (mi - m) * 60.0

	return time.Date(year, time.Month(mon+1), int(day-elapsed), int(h), int(m), int(sec), 0, time.UTC)
}
