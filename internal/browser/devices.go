package browser

// Device is an emulated device profile for a browser session.
type Device struct {
	Name        string
	UserAgent   string
	Width       int64
	Height      int64
	ScaleFactor float64
	Mobile      bool
	Touch       bool
	Platform    string
}

// DefaultDevices is the mobile rotation pool used for review pages.
var DefaultDevices = []Device{
	{
		Name:        "galaxy-s20",
		UserAgent:   "Mozilla/5.0 (Linux; Android 10; SM-G981B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.162 Mobile Safari/537.36",
		Width:       412,
		Height:      915,
		ScaleFactor: 2.625,
		Mobile:      true,
		Touch:       true,
		Platform:    "Linux armv8l",
	},
	{
		Name:        "iphone-13-pro",
		UserAgent:   "Mozilla/5.0 (iPhone; CPU iPhone OS 13_2_3 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.0.3 Mobile/15E148 Safari/604.1",
		Width:       412,
		Height:      915,
		ScaleFactor: 3,
		Mobile:      true,
		Touch:       true,
		Platform:    "iPhone",
	},
}

// DesktopUserAgents is the rotation pool for plain HTTP requests.
var DesktopUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// PickDevice draws one device from pool. It panics on an empty pool.
func PickDevice(rng *Rand, pool []Device) Device {
	return pool[rng.IntN(len(pool))]
}

// PickUserAgent draws one user agent from pool, or "" for an empty pool.
func PickUserAgent(rng *Rand, pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rng.IntN(len(pool))]
}
