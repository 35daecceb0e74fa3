package attendance

import "errors"

var ErrSummaryUnavailable = errors.New("attendance summary is unavailable")
