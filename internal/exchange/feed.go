package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"unicode/utf8"

	"github.com/beekhof/exchange-sync/internal/domain"
	"github.com/beekhof/exchange-sync/internal/schedule"
)

// CalendarViewPath is the REST resource queried for the day's events.
const CalendarViewPath = "/api/v2.0/me/calendarview"

// selectFields limits the feed to the properties the pipeline reads.
const selectFields = "Subject,Start,Location,Body,LastModifiedDateTime"

// CalendarEvent is one entry of the calendar view feed.
type CalendarEvent struct {
	ID                   string           `json:"Id"`
	Subject              string           `json:"Subject"`
	Location             Location         `json:"Location"`
	Start                DateTimeTimeZone `json:"Start"`
	LastModifiedDateTime string           `json:"LastModifiedDateTime"`
	Body                 ItemBody         `json:"Body"`
}

// Location is the event location.
type Location struct {
	DisplayName string `json:"DisplayName"`
}

// DateTimeTimeZone is a naive local date-time qualified by an IANA zone name.
type DateTimeTimeZone struct {
	DateTime string `json:"DateTime"`
	TimeZone string `json:"TimeZone"`
}

// ItemBody is the event body as returned by the server. With the text
// preference applied ContentType is "Text", but markup may still be present.
type ItemBody struct {
	ContentType string `json:"ContentType"`
	Content     string `json:"Content"`
}

type feed struct {
	Value []CalendarEvent `json:"value"`
}

var errNotText = errors.New("response body is not valid UTF-8 text")

// DecodeFeed parses a calendar view response body.
func DecodeFeed(body []byte) ([]CalendarEvent, error) {
	if !utf8.Valid(body) {
		return nil, &domain.DecodeError{Err: errNotText}
	}

	var f feed
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, &domain.DecodeError{Err: fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)}
	}
	if f.Value == nil {
		return nil, &domain.DecodeError{Err: fmt.Errorf("%w: missing 'value' array", domain.ErrMalformedResponse)}
	}

	return f.Value, nil
}

// BuildURL returns the calendar view URL for the given window.
func BuildURL(endpoint string, w schedule.Window) string {
	return fmt.Sprintf("%s%s?startDateTime=%s&endDateTime=%s&$select=%s",
		endpoint, CalendarViewPath,
		url.QueryEscape(w.Start), url.QueryEscape(w.End),
		selectFields)
}
