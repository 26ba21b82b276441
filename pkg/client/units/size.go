package units

import "fmt"

var abbrs = []string{"B", "kB", "MB", "GB", "TB", "PB"}

// HumanSize renders a byte count with a decimal unit, e.g. 1.21GB.
func HumanSize(size float64) string {
	return HumanSizeWithPrecision(size, 3)
}

func HumanSizeWithPrecision(size float64, precision int) string {
	i := 0
	for size >= 1000.0 && i < len(abbrs)-1 {
		size /= 1000.0
		i++
	}
	return fmt.Sprintf("%.*g%s", precision, size, abbrs[i])
}
