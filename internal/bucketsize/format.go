package bucketsize

import "fmt"

var sizeUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// FormatSize renders a byte count in binary (1024-based) units with two
// decimal places, choosing the largest unit whose value is at least 1.
// Zero renders as the fixed literal "0 B".
func FormatSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}

	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", value, sizeUnits[unit])
}
