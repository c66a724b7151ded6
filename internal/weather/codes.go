package weather

// Band icon codes
const (
	IconSun byte = iota
	IconSunCloud
	IconCloud
	IconRain3
	IconRain4
	IconRain5
	IconRain5Alt
	IconRain6
	IconRainSnowCloud
	IconSnow1
	IconSnow2
	IconSnow3
	IconSnow4
	IconHail
	IconFog
	IconLightningRainCloud
	IconLightningSnowCloud
)

type condition struct {
	icon byte
	text string
}

// WMO weather interpretation codes as reported by Open-Meteo
var conditions = map[int]condition{
	0:  {IconSun, "Clear sky"},
	1:  {IconSunCloud, "Mainly clear"},
	2:  {IconSunCloud, "Partly cloudy"},
	3:  {IconCloud, "Overcast"},
	45: {IconFog, "Fog"},
	48: {IconFog, "Depositing rime"},
	51: {IconRain3, "Light drizzle"},
	53: {IconRain3, "Moderate drizzle"},
	55: {IconRain4, "Heavy drizzle"},
	56: {IconRainSnowCloud, "Light freezing drizzle"},
	57: {IconRainSnowCloud, "Dense freezing drizzle"},
	61: {IconRain4, "Slight rain"},
	63: {IconRain5Alt, "Moderate rain"},
	65: {IconRain5, "Heavy rain"},
	66: {IconRainSnowCloud, "Light freezing rain"},
	67: {IconRainSnowCloud, "Heavy freezing rain"},
	71: {IconSnow2, "Slight snow fall"},
	73: {IconSnow3, "Moderate snow fall"},
	75: {IconSnow4, "Heavy snow fall"},
	77: {IconHail, "Snow grains"},
	80: {IconRain4, "Light rain shower"},
	81: {IconRain5, "Moderate rain shower"},
	82: {IconRain6, "Violent rain shower"},
	85: {IconSnow1, "Slight snow shower"},
	86: {IconSnow3, "Heavy snow shower"},
	95: {IconLightningRainCloud, "Thunderstorm"},
	96: {IconLightningSnowCloud, "Thunderstorm with hail"},
}

// Icon maps a WMO code to a band icon. Unknown codes show the sun.
func Icon(code int) byte {
	if c, ok := conditions[code]; ok {
		return c.icon
	}
	return IconSun
}

// Describe returns the display text for a WMO code
func Describe(code int) string {
	if c, ok := conditions[code]; ok {
		return c.text
	}
	return "Unknown"
}
