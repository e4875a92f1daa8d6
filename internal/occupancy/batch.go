package occupancy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedBatch is returned when an ingestion document cannot be used at
// all: the timestamp is missing or unparseable, or the document is not shaped
// as expected. Nothing from such a document is ingested.
var ErrMalformedBatch = errors.New("malformed batch")

// ParseBatch decodes an ingestion document. Station entries missing
// station_no or available_spaces are skipped and counted; any structural
// problem fails the whole batch with ErrMalformedBatch.
func ParseBatch(raw []byte, loc *time.Location) (Batch, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Batch{}, fmt.Errorf("%w: document is not a JSON object: %v", ErrMalformedBatch, err)
	}
	if doc == nil {
		return Batch{}, fmt.Errorf("%w: document is null", ErrMalformedBatch)
	}

	tsRaw, ok := doc["timestamp"]
	if !ok || isNull(tsRaw) {
		return Batch{}, fmt.Errorf("%w: timestamp is required", ErrMalformedBatch)
	}
	var tsStr string
	if err := json.Unmarshal(tsRaw, &tsStr); err != nil {
		return Batch{}, fmt.Errorf("%w: timestamp must be a string", ErrMalformedBatch)
	}
	ts, err := ParseTimestamp(tsStr, loc)
	if err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}

	batch := Batch{Timestamp: ts}

	stationsRaw, ok := doc["stations"]
	if !ok || isNull(stationsRaw) {
		return batch, nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(stationsRaw, &entries); err != nil {
		return Batch{}, fmt.Errorf("%w: stations must be an array", ErrMalformedBatch)
	}

	batch.Readings = make([]Reading, 0, len(entries))
	for i, entryRaw := range entries {
		var entry map[string]json.RawMessage
		if err := json.Unmarshal(entryRaw, &entry); err != nil || entry == nil {
			return Batch{}, fmt.Errorf("%w: stations[%d] is not an object", ErrMalformedBatch, i)
		}

		stationNo, okNo := decodeStationNo(entry["station_no"])
		spaces, okSpaces := decodeSpaces(entry["available_spaces"])
		if !okNo || !okSpaces {
			batch.Skipped++
			continue
		}
		batch.Readings = append(batch.Readings, Reading{
			StationNo:       stationNo,
			AvailableSpaces: spaces,
		})
	}

	return batch, nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeStationNo accepts a JSON string or a JSON number in its literal form.
func decodeStationNo(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// decodeSpaces accepts a JSON integer, an integral JSON number, or a string
// holding an integer.
func decodeSpaces(raw json.RawMessage) (int, bool) {
	if isNull(raw) {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return numberToInt(n.String())
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return numberToInt(strings.TrimSpace(s))
	}
	return 0, false
}

// numberToInt accepts integral values within int32 range, written either as
// integers or as floats with no fractional part.
func numberToInt(s string) (int, bool) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v > math.MaxInt32 || v < math.MinInt32 {
			return 0, false
		}
		return int(v), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
