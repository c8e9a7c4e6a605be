package oai

import (
	"errors"
	"regexp"
	"time"

	"github.com/aep/oairepo/repo"
)

type Granularity int

const (
	Invalid Granularity = iota
	Date
	DateTime
)

const (
	UTCFormat     = "2006-01-02T15:04:05Z"
	DateFormat    = "2006-01-02"
	StorageFormat = repo.TimeFormat

	// GranularityString is the granularity Identify advertises.
	GranularityString = "YYYY-MM-DDThh:mm:ssZ"
)

var ErrBadGranularity = errors.New("bad date granularity")

var (
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)
)

func GranularityOf(s string) Granularity {
	switch {
	case dateRe.MatchString(s):
		return Date
	case dateTimeRe.MatchString(s):
		return DateTime
	}
	return Invalid
}

func ToUTC(t time.Time) string {
	return t.UTC().Format(UTCFormat)
}

func ToStorage(t time.Time) string {
	return t.UTC().Format(StorageFormat)
}

func UnixToUTC(sec int64) string {
	return ToUTC(time.Unix(sec, 0))
}

func UnixToStorage(sec int64) string {
	return ToStorage(time.Unix(sec, 0))
}

func StorageToUTC(s string) (string, error) {
	t, err := time.ParseInLocation(StorageFormat, s, time.UTC)
	if err != nil {
		return "", err
	}
	return ToUTC(t), nil
}

// UTCToStorage accepts either granularity. A plain date means midnight UTC of
// that day.
func UTCToStorage(s string) (string, error) {
	var layout string
	switch GranularityOf(s) {
	case Date:
		layout = DateFormat
	case DateTime:
		layout = UTCFormat
	default:
		return "", ErrBadGranularity
	}

	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return "", err
	}
	return ToStorage(t), nil
}
