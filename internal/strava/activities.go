package strava

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"strava-motherduck-sync/internal/metrics"
)

// perPage is the Strava maximum page size for list endpoints
const perPage = 200

// Record is one activity as returned by the API, with all fields intact.
// Numeric values are json.Number so they round-trip exactly as written.
type Record map[string]any

// Window is the half-open interval [After, Before) of Unix timestamps
// bounding a fetch request.
type Window struct {
	After  int64
	Before int64
}

// YearWindow returns the window covering the calendar year y in UTC.
func YearWindow(y int) Window {
	start := time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(y+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Window{After: start.Unix(), Before: end.Unix()}
}

// LastNDaysWindow returns the window covering the n days ending at now.
func LastNDaysWindow(n int, now time.Time) Window {
	return Window{
		After:  now.Add(-time.Duration(n) * 24 * time.Hour).Unix(),
		Before: now.Unix(),
	}
}

// FetchActivities fetches all activities in the window, paging until the
// API returns an empty page. A total that is an exact multiple of the page
// size costs one extra request, which comes back empty; that is the
// termination condition. Any HTTP error aborts immediately.
func (c *Client) FetchActivities(ctx context.Context, accessToken string, window Window) ([]Record, error) {
	var all []Record

	for page := 1; ; page++ {
		params := url.Values{
			"after":    {strconv.FormatInt(window.After, 10)},
			"before":   {strconv.FormatInt(window.Before, 10)},
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(perPage)},
		}
		path := "/athlete/activities?" + params.Encode()

		respBody, err := c.get(ctx, path, accessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch activities page %d: %w", page, err)
		}

		activities, err := decodeRecords(respBody)
		if err != nil {
			return nil, fmt.Errorf("failed to decode activities page %d: %w", page, err)
		}

		metrics.ActivityPagesTotal.Inc()

		if len(activities) == 0 {
			break
		}

		all = append(all, activities...)
		metrics.ActivitiesFetchedTotal.Add(float64(len(activities)))
	}

	c.logger.Info("fetched activities", "count", len(all), "after", window.After, "before", window.Before)
	return all, nil
}

// decodeRecords unmarshals one page keeping numbers as json.Number
func decodeRecords(body []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var records []Record
	if err := dec.Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}
