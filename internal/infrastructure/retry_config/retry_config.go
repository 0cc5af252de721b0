package retry_config

import (
	"time"

	"github.com/avast/retry-go"
)

// CleanupRetryOptions bounds how long temporary clone removal is retried. Removal can fail
// transiently while pack files are still being released, and a leaked clone accumulates disk
// across pipeline runs.
var CleanupRetryOptions = []retry.Option{
	retry.Attempts(3),
	retry.MaxDelay(3 * time.Second),
}
