package vfs

import "time"

var fixedTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
