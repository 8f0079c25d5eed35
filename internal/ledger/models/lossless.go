package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	errInvalidUTF8 = errors.New("string is not valid UTF-8")
	errNULByte     = errors.New("string contains a NUL character")
)

// checkLossless rejects marshalled payloads whose canonical form would not
// carry the caller's values unchanged. encoding/json coerces invalid UTF-8 to
// the escape \ufffd, and the canonical transform rounds every number to the
// nearest IEEE 754 double. NUL is refused because not every store can hold it.
func checkLossless(raw []byte) error {
	if !utf8.Valid(raw) {
		return errInvalidUTF8
	}
	if err := checkStrings(raw); err != nil {
		return err
	}
	return checkNumbers(raw)
}

// checkStrings scans the escapes inside JSON strings. A valid U+FFFD is
// emitted as raw bytes by encoding/json, so the \ufffd escape only appears
// where invalid input was replaced.
func checkStrings(raw []byte) error {
	inString := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			continue
		}
		switch c {
		case '"':
			inString = false
		case '\\':
			if i+5 < len(raw) && raw[i+1] == 'u' {
				switch strings.ToLower(string(raw[i+2 : i+6])) {
				case "fffd":
					return errInvalidUTF8
				case "0000":
					return errNULByte
				}
				i += 5
				continue
			}
			i++
		}
	}
	return nil
}

func checkNumbers(raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if n, ok := tok.(json.Number); ok {
			if err := checkNumber(n.String()); err != nil {
				return err
			}
		}
	}
}

// checkNumber requires the literal to equal the shortest double
// representation the canonical form will print for it.
func checkNumber(lit string) error {
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return fmt.Errorf("number %s is out of range", lit)
	}
	want, ok := new(big.Rat).SetString(lit)
	if !ok {
		return fmt.Errorf("number %s is malformed", lit)
	}
	got, ok := new(big.Rat).SetString(strconv.FormatFloat(f, 'g', -1, 64))
	if !ok || want.Cmp(got) != 0 {
		return fmt.Errorf("number %s cannot be represented exactly", lit)
	}
	return nil
}
