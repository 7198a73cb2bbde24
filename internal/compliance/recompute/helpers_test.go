package recompute

import "time"

var epochForTest = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
