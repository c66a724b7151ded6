package codec

import (
	"encoding/binary"
	"time"
)

// Weather chunked transfer type and sub-payload tags
const (
	WeatherChunkType = 0x01

	weatherTagForecast = 0x01
	weatherTagCurrent  = 0x02
	weatherTagAir      = 0x04
	weatherTagCity     = 0x08

	weatherMarker = 0xec
)

// DayForecast is one forecast day. Icon is the band condition code.
type DayForecast struct {
	Icon byte   `json:"icon"`
	High int    `json:"high"`
	Low  int    `json:"low"`
	Text string `json:"text"`
}

// Weather is everything pushed to the band in one weather update.
// Temperatures are whole degrees in whatever unit the caller chose.
type Weather struct {
	Time        time.Time     `json:"time"`
	City        string        `json:"city"`
	AirIndex    int           `json:"air_index"`
	AirText     string        `json:"air_text"`
	CurrentIcon byte          `json:"current_icon"`
	Current     int           `json:"current"`
	CurrentText string        `json:"current_text"`
	Forecast    []DayForecast `json:"forecast"`
}

// maxForecastDays is what the band displays
const maxForecastDays = 7

func weatherHeader(tag byte, ts time.Time) []byte {
	b := make([]byte, 6)
	b[0] = tag
	binary.LittleEndian.PutUint32(b[1:5], uint32(ts.Unix()))
	b[5] = weatherMarker
	return b
}

func cstring(s string) []byte {
	return append([]byte(s), 0x00)
}

func clampInt8(v int) byte {
	switch {
	case v > 127:
		v = 127
	case v < -128:
		v = -128
	}
	return byte(int8(v))
}

// WeatherPayloads returns the four sub-payloads in send order: city, air
// index, current conditions and forecast. Each is one chunked transfer.
func WeatherPayloads(w Weather) [][]byte {
	city := append(weatherHeader(weatherTagCity, w.Time), cstring(w.City)...)

	air := weatherHeader(weatherTagAir, w.Time)
	air = binary.LittleEndian.AppendUint16(air, uint16(w.AirIndex))
	air = append(air, cstring(w.AirText)...)

	current := weatherHeader(weatherTagCurrent, w.Time)
	current = append(current, w.CurrentIcon, clampInt8(w.Current))
	current = append(current, cstring(w.CurrentText)...)

	days := w.Forecast
	if len(days) > maxForecastDays {
		days = days[:maxForecastDays]
	}
	forecast := weatherHeader(weatherTagForecast, w.Time)
	forecast = append(forecast, byte(len(days)))
	for _, d := range days {
		forecast = append(forecast, d.Icon, d.Icon, clampInt8(d.High), clampInt8(d.Low))
		forecast = append(forecast, cstring(d.Text)...)
	}

	return [][]byte{city, air, current, forecast}
}
