package reports

import "errors"

var ErrReportNotFound = errors.New("annual report not found")
