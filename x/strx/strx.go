package strx

// Coalesce picks s unless it is empty, in which case the fallback d wins.
// Device builders use it to default capability names from instance IDs.
func Coalesce(s, d string) string {
	if s == "" {
		return d
	}
	return s
}
