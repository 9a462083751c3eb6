package discovery

import "math"

const earthRadiusMeters = 6371000.0

// haversineMeters returns the great-circle distance between a and b.
func haversineMeters(a, b [2]float64) float64 {
	lat1, lng1 := degreesToRadians(a[0]), degreesToRadians(a[1])
	lat2, lng2 := degreesToRadians(b[0]), degreesToRadians(b[1])
	dLat := lat2 - lat1
	dLng := lng2 - lng1

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// sortByDistance is a stable insertion sort; candidate lists are short.
func sortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && dist(items[j]) > dist(key) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
