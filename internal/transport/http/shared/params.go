package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	MinYear = 1900
	MaxYear = 9999
)

// ParseYear reads a calendar year and records an issue when it is not one.
func (v *Validator) ParseYear(field, raw string) int {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || year < MinYear || year > MaxYear {
		v.Add(field, fmt.Sprintf("must be a year between %d and %d", MinYear, MaxYear))
		return 0
	}
	return year
}

func (v *Validator) ParseMonth(field, raw string) int {
	month, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || month < 1 || month > 12 {
		v.Add(field, "must be a month between 1 and 12")
		return 0
	}
	return month
}

// DecodeJSON strictly decodes a single JSON object from the request body.
func DecodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must contain a single JSON object")
	}
	return nil
}
