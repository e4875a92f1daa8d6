package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/bike-occupancy/internal/occupancy"
)

// DefaultKCGURL is the Kaohsiung City open data endpoint for YouBike 2.0 stations.
const DefaultKCGURL = "https://api.kcg.gov.tw:443/api/service/Get/b4dd9c40-9027-4125-8666-06bef1756092"

var errMissingRetVal = errors.New("feed payload has no data.data.retVal")

// KCGSource implements the occupancy.Source interface for the Kaohsiung open data feed.
type KCGSource struct {
	name    string
	baseURL string
	loc     *time.Location
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	now     func() time.Time
}

// NewKCGSource creates a source polling baseURL. Feed timestamps without an
// offset are read as wall clock time in loc.
func NewKCGSource(client *http.Client, baseURL string, loc *time.Location) *KCGSource {
	if baseURL == "" {
		baseURL = DefaultKCGURL
	}
	if loc == nil {
		loc = time.UTC
	}
	return &KCGSource{
		name:    "kcg",
		baseURL: baseURL,
		loc:     loc,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: newCircuitBreaker("kcg"),
		now:     time.Now,
	}
}

func (s *KCGSource) Name() string {
	return s.name
}

type kcgStation struct {
	Sno       string  `json:"sno"`
	Total     flexInt `json:"tot"`
	Available flexInt `json:"sbi"`
	Empty     flexInt `json:"bemp"`
	Detail    struct {
		YB2 flexInt `json:"yb2"`
		EYB flexInt `json:"eyb"`
	} `json:"sbi_detail"`
}

type kcgPayload struct {
	Data struct {
		Data struct {
			UpdatedAt string        `json:"updated_at"`
			RetVal    *[]kcgStation `json:"retVal"`
		} `json:"data"`
	} `json:"data"`
}

func (s *KCGSource) Fetch(ctx context.Context) (occupancy.Document, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
		req.Header.Set("Referer", "https://www.youbike.com.tw/")
		req.Header.Set("Origin", "https://www.youbike.com.tw")
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, s.httpCfg, s.circuit, buildRequest)
	if err != nil {
		return occupancy.Document{}, err
	}
	defer resp.Body.Close()

	var payload kcgPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return occupancy.Document{}, fmt.Errorf("decode kcg payload: %w", err)
	}

	return s.convert(payload)
}

// convert turns the raw feed into an ingestion document.
func (s *KCGSource) convert(payload kcgPayload) (occupancy.Document, error) {
	retVal := payload.Data.Data.RetVal
	if retVal == nil {
		return occupancy.Document{}, errMissingRetVal
	}

	ts, err := occupancy.ParseTimestamp(payload.Data.Data.UpdatedAt, s.loc)
	if err != nil {
		ts = s.now().In(s.loc)
	}

	stations := make([]occupancy.DocumentStation, 0, len(*retVal))
	for _, item := range *retVal {
		total := int(item.Total)
		available := int(item.Available)

		level := 0
		if total != 0 {
			level = int(math.RoundToEven(float64(available) / float64(total) * 100))
		}

		stations = append(stations, occupancy.DocumentStation{
			StationNo:       item.Sno,
			ParkingSpaces:   total,
			AvailableSpaces: available,
			AvailableSpacesDetail: map[string]int{
				"yb2": int(item.Detail.YB2),
				"eyb": int(item.Detail.EYB),
			},
			EmptySpaces:          int(item.Empty),
			ForbiddenSpaces:      0,
			AvailableSpacesLevel: level,
		})
	}

	return occupancy.Document{
		Timestamp: ts.Format(time.RFC3339Nano),
		Stations:  stations,
	}, nil
}
