package oai

import (
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
)

// queryKeyCounts counts every key of a raw query string, so repeated keys
// are visible even after the request was parsed into a map.
func queryKeyCounts(rawQuery string) map[string]int {
	counts := make(map[string]int)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, _, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		counts[key]++
	}
	return counts
}

// validate returns every argument error of a request for verb.
func (r *Responder) validate(verb Verb, args map[string]string, rawQuery string) []Error {
	var errs []Error
	bad := func(format string, a ...any) {
		errs = append(errs, Error{Code: BadArgument, Message: fmt.Sprintf(format, a...)})
	}

	want := verbArguments[verb]
	_, resumed := args[resumptionToken]
	exclusive := resumed && want.resumable
	if exclusive {
		want = arguments{required: []string{resumptionToken}}
	}

	for _, name := range want.required {
		if _, ok := args[name]; !ok {
			bad("Missing required argument %s.", name)
		}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == "verb" || want.allows(name) {
			continue
		}
		if exclusive {
			bad("Argument %s is not allowed with resumptionToken.", name)
		} else {
			bad("Unknown argument %s.", name)
		}
	}

	counts := queryKeyCounts(rawQuery)
	var dups []string
	for name, n := range counts {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	slices.Sort(dups)
	for _, name := range dups {
		bad("Duplicate argument %s.", name)
	}

	var granularities []Granularity
	for _, name := range []string{"from", "until"} {
		v, ok := args[name]
		if !ok || !want.allows(name) {
			continue
		}
		g := GranularityOf(v)
		if g == Invalid {
			bad("Invalid date/time for %s: %s.", name, v)
			continue
		}
		if _, err := UTCToStorage(v); err != nil {
			bad("Invalid date/time for %s: %s.", name, v)
			continue
		}
		granularities = append(granularities, g)
	}
	if len(granularities) == 2 && granularities[0] != granularities[1] {
		bad("Date/time arguments of differing granularity.")
	}

	if prefix, ok := args["metadataPrefix"]; ok && want.allows("metadataPrefix") {
		if _, found := r.formats.Lookup(prefix); !found {
			errs = append(errs, Error{
				Code:    CannotDisseminateFormat,
				Message: fmt.Sprintf("The metadata format %s is not supported by this repository.", prefix),
			})
		}
	}

	return errs
}
