package oai

import (
	"errors"
	"strconv"
	"strings"
)

var ErrIDDoesNotExist = errors.New("identifier does not exist")

// RecordToOAIID returns "oai:<namespace>:<id>".
func RecordToOAIID(id int64, namespace string) string {
	return "oai:" + namespace + ":" + strconv.FormatInt(id, 10)
}

// OAIIDToRecord parses an identifier issued by RecordToOAIID. Anything else,
// including an identifier of another namespace, is ErrIDDoesNotExist.
func OAIIDToRecord(oaiID string, namespace string) (int64, error) {
	parts := strings.Split(oaiID, ":")
	if len(parts) != 3 || parts[0] != "oai" || parts[1] != namespace {
		return 0, ErrIDDoesNotExist
	}

	id, err := strconv.ParseUint(parts[2], 10, 63)
	if err != nil {
		return 0, ErrIDDoesNotExist
	}
	return int64(id), nil
}
