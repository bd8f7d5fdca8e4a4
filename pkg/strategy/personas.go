package strategy

import (
	"time"

	"audiograb/pkg/pace"
)

// Persona and transport names
const (
	NameDirect      = "direct"
	NameStandard    = "standard"
	NameMobile      = "mobile"
	NameFirefox     = "firefox"
	NameMinimal     = "minimal"
	NameFreshChrome = "fresh-chrome"
	NameCrossSite   = "cross-site"
	NameStealth     = "stealth"

	TransportStandard = "standard"
	TransportRange    = "range"
	TransportBrowser  = "browser"
)

const (
	chromeWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	chromeMac     = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	chromeLinux   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	firefox121    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0"
	iPhoneSafari  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

	acceptHTML     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptHTMLFull = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"
	acceptAudio    = "audio/webm,audio/ogg,audio/wav,audio/*;q=0.9,application/ogg;q=0.7,video/*;q=0.6,*/*;q=0.5"
	chromeHints    = `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`
)

// UserAgents is the rotating table drawn from by {user_agent}
var UserAgents = []string{
	chromeWindows,
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
	chromeMac,
	chromeLinux,
}

var attemptDelay = pace.Seconds(0.2, 0.5)

func directPersona() Strategy {
	return Strategy{
		Name: NameDirect,
		Headers: Headers{
			"User-Agent":                PlaceholderUserAgent,
			"Accept":                    acceptHTMLFull,
			"Accept-Language":           "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7,ja;q=0.6",
			"Accept-Encoding":           "gzip, deflate, br",
			"DNT":                       "1",
			"Upgrade-Insecure-Requests": "1",
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Sec-Fetch-User":            "?1",
			"Cache-Control":             "max-age=0",
		},
	}
}

func escalationPersonas() []Strategy {
	basicNav := Headers{
		"User-Agent":      chromeWindows,
		"Accept":          acceptHTML,
		"Accept-Language": "ko-KR,ko;q=0.9",
	}

	return []Strategy{
		{
			Name: NameStandard,
			Headers: Headers{
				"User-Agent":      PlaceholderUserAgent,
				"Accept":          acceptHTML,
				"Accept-Language": "ko-KR,ko;q=0.9,en;q=0.8",
				"Accept-Encoding": "gzip, deflate",
				"Referer":         PlaceholderOrigin + "/",
			},
			Delay: attemptDelay,
		},
		{
			Name: NameMobile,
			Headers: Headers{
				"User-Agent":                iPhoneSafari,
				"Accept":                    acceptHTML,
				"Accept-Language":           "ko-KR,ko;q=0.9,en;q=0.8",
				"Accept-Encoding":           "gzip, deflate",
				"Referer":                   PlaceholderOrigin + "/",
				"DNT":                       "1",
				"Upgrade-Insecure-Requests": "1",
			},
			Delay: attemptDelay,
		},
		{
			Name: NameFirefox,
			Headers: Headers{
				"User-Agent":                firefox121,
				"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
				"Accept-Language":           "ko-KR,ko;q=0.8,en-US;q=0.5,en;q=0.3",
				"Accept-Encoding":           "gzip, deflate, br",
				"DNT":                       "1",
				"Upgrade-Insecure-Requests": "1",
				"Sec-Fetch-Dest":            "document",
				"Sec-Fetch-Mode":            "navigate",
				"Sec-Fetch-Site":            "none",
				"Referer":                   PlaceholderOrigin + "/",
			},
			Delay: attemptDelay,
		},
		{
			Name: NameMinimal,
			Headers: Headers{
				"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
				"Accept":     "*/*",
			},
			Delay: attemptDelay,
		},
		{
			Name:  NameFreshChrome,
			Scope: Fresh,
			Headers: Headers{
				"User-Agent":         chromeMac,
				"Accept":             acceptHTML,
				"Accept-Language":    "en-US,en;q=0.9",
				"Accept-Encoding":    "gzip, deflate, br",
				"Cache-Control":      "max-age=0",
				"sec-ch-ua":          chromeHints,
				"sec-ch-ua-mobile":   "?0",
				"sec-ch-ua-platform": `"macOS"`,
				"Sec-Fetch-Dest":     "document",
				"Sec-Fetch-Mode":     "navigate",
				"Sec-Fetch-Site":     "none",
				"Sec-Fetch-User":     "?1",
			},
			Delay: attemptDelay,
		},
		{
			Name: NameCrossSite,
			Headers: Headers{
				"User-Agent":                chromeLinux,
				"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
				"Accept-Language":           "en-US,en;q=0.9,ko;q=0.8",
				"Accept-Encoding":           "gzip, deflate, br",
				"Cache-Control":             "no-cache",
				"DNT":                       "1",
				"Pragma":                    "no-cache",
				"Referer":                   "https://www.google.com/",
				"Sec-Fetch-Dest":            "document",
				"Sec-Fetch-Mode":            "navigate",
				"Sec-Fetch-Site":            "cross-site",
				"Sec-Fetch-User":            "?1",
				"Upgrade-Insecure-Requests": "1",
			},
			Navigation: []NavStep{
				{Target: SiteRoot, Headers: Headers{"User-Agent": chromeLinux, "Accept": acceptHTML}, Pause: pace.Seconds(0.2, 0.2)},
			},
			Delay: attemptDelay,
		},
		{
			Name:  NameStealth,
			Scope: Fresh,
			Headers: Headers{
				"User-Agent":                chromeWindows,
				"Accept":                    acceptHTMLFull,
				"Accept-Language":           "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
				"Accept-Encoding":           "gzip, deflate, br",
				"Cache-Control":             "max-age=0",
				"DNT":                       "1",
				"Referer":                   PlaceholderOrigin + "/",
				"sec-ch-ua":                 chromeHints,
				"sec-ch-ua-mobile":          "?0",
				"sec-ch-ua-platform":        `"Windows"`,
				"Sec-Fetch-Dest":            "document",
				"Sec-Fetch-Mode":            "navigate",
				"Sec-Fetch-Site":            "same-origin",
				"Sec-Fetch-User":            "?1",
				"Upgrade-Insecure-Requests": "1",
			},
			Navigation: []NavStep{
				{Target: SiteRoot, Headers: basicNav, Pause: pace.Seconds(0.1, 0.3)},
			},
			Delay: attemptDelay,
		},
	}
}

func probeHeaders() Headers {
	return Headers{
		"User-Agent":      chromeWindows,
		"Accept":          acceptHTML,
		"Accept-Language": "ko-KR,ko;q=0.9,en;q=0.8",
		"Accept-Encoding": "gzip, deflate, br",
		"Referer":         PlaceholderOrigin + "/",
	}
}

func downloadTransports() []Strategy {
	return []Strategy{
		{
			Name: TransportStandard,
			Headers: Headers{
				"User-Agent":         chromeWindows,
				"Accept":             "*/*",
				"Accept-Language":    "en-US,en;q=0.9",
				"DNT":                "1",
				"Sec-Fetch-Dest":     "audio",
				"Sec-Fetch-Mode":     "no-cors",
				"Sec-Fetch-Site":     "cross-site",
				"sec-ch-ua":          chromeHints,
				"sec-ch-ua-mobile":   "?0",
				"sec-ch-ua-platform": `"Windows"`,
				"Referer":            PlaceholderPage,
				"Origin":             PlaceholderOrigin,
			},
		},
		{
			Name:  TransportRange,
			Scope: Fresh,
			Headers: Headers{
				"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/121.0",
				"Accept":          acceptAudio,
				"Accept-Language": "ko-KR,ko;q=0.8,en-US;q=0.5,en;q=0.3",
				"Range":           "bytes=0-",
				"DNT":             "1",
				"Sec-Fetch-Dest":  "audio",
				"Sec-Fetch-Mode":  "no-cors",
				"Sec-Fetch-Site":  "cross-site",
				"Pragma":          "no-cache",
				"Cache-Control":   "no-cache",
				"Referer":         PlaceholderPage,
				"Origin":          PlaceholderOrigin,
			},
			Navigation: []NavStep{
				{Target: OriginPage, Headers: Headers{"User-Agent": firefox121, "Accept": acceptHTML}, Pause: pace.Seconds(0.5, 0.5)},
			},
		},
		{
			Name:  TransportBrowser,
			Scope: Fresh,
			Headers: Headers{
				"User-Agent":         chromeWindows,
				"Accept":             "*/*",
				"Accept-Language":    "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7",
				"Accept-Encoding":    "identity;q=1, *;q=0",
				"Range":              "bytes=0-",
				"Referer":            PlaceholderPage,
				"Origin":             PlaceholderOrigin,
				"sec-ch-ua":          chromeHints,
				"sec-ch-ua-mobile":   "?0",
				"sec-ch-ua-platform": `"Windows"`,
				"Sec-Fetch-Dest":     "audio",
				"Sec-Fetch-Mode":     "no-cors",
				"Sec-Fetch-Site":     "same-origin",
			},
			Navigation: []NavStep{
				{Target: SiteRoot, Headers: Headers{"User-Agent": chromeWindows, "Accept": acceptHTMLFull}, Pause: pace.Seconds(0.3, 0.3), Timeout: 10 * time.Second},
				{Target: OriginPage, Headers: Headers{"User-Agent": chromeWindows, "Accept": acceptHTMLFull, "Referer": PlaceholderOrigin + "/"}, Pause: pace.Seconds(0.5, 0.5)},
			},
		},
	}
}

// DefaultRegistry returns the built-in persona table
func DefaultRegistry() *Registry {
	r, err := NewRegistry(directPersona(), escalationPersonas(),
		WithUserAgents(UserAgents...),
		WithProbeHeaders(probeHeaders()),
		WithTransports(downloadTransports()...),
	)
	if err != nil {
		panic("strategy: invalid built-in registry: " + err.Error())
	}
	return r
}
