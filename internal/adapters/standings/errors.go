package standings

import "github.com/thor-coding-cowboys/scorebrawl-sub001/pkg/errs"

// Sentinel errors for standings lookups.
var (
	ErrNotFound     = errs.E("standings", errs.ErrNotFound, "season player is not ranked")
	ErrInvalidLimit = errs.E("standings", errs.ErrValidation, "invalid standings limit")
)
