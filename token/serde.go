package token

import (
	"bytes"
	"encoding/json"
	"errors"
)

func deserialize(b []byte, tok *Token) error {
	if len(b) < 1 {
		return errors.New("empty token record")
	}
	if b[0] != 'j' {
		return errors.New("invalid encoding stored in database")
	}
	dec := json.NewDecoder(bytes.NewReader(b[1:]))
	return dec.Decode(tok)
}

func serialize(tok *Token) ([]byte, error) {
	b, err := json.Marshal(tok)
	if err != nil {
		return nil, err
	}
	return append([]byte{'j'}, b...), nil
}
