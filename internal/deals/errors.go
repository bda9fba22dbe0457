package deals

import "errors"

var ErrNotFound = errors.New("not found")
