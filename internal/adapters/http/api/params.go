package api

import (
	"strconv"

	"github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"
)

// queryInt parses an optional positive integer query parameter.
func queryInt(op, name, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errs.E(op, errs.ErrValidation, name+" must be a positive integer")
	}
	return n, nil
}
