// Package ics exports tasks as an iCalendar document with one VTODO each.
package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/beekhof/exchange-sync/internal/domain"

	"github.com/emersion/go-ical"
)

// ProductID identifies the producer in exported calendars.
const ProductID = "-//Exchange Sync//EN"

// Non-standard properties carrying task fields that have no iCalendar
// counterpart.
const (
	PropKind    = "X-EXSYNC-KIND"
	PropOptions = "X-EXSYNC-OPTIONS"
)

// Calendar builds the calendar for tasks.
func Calendar(tasks []domain.Task) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, t := range tasks {
		cal.Children = append(cal.Children, todo(t))
	}
	return cal
}

func todo(t domain.Task) *ical.Component {
	modified := time.Unix(int64(t.ExternalModifiedAt), 0).UTC()

	vtodo := ical.NewComponent(ical.CompToDo)
	vtodo.Props.SetText(ical.PropUID, t.ExternalID)
	vtodo.Props.SetText(ical.PropSummary, t.Name)
	vtodo.Props.SetDateTime(ical.PropDateTimeStart, time.Unix(int64(t.StartAt), 0).UTC())
	vtodo.Props.SetDateTime(ical.PropDateTimeStamp, modified)
	vtodo.Props.SetDateTime(ical.PropLastModified, modified)
	vtodo.Props.SetText(ical.PropStatus, "NEEDS-ACTION")
	if t.ProjectCode != "" {
		vtodo.Props.SetText(ical.PropCategories, t.ProjectCode)
	}
	vtodo.Props.SetText(PropKind, t.Kind)
	vtodo.Props.SetText(PropOptions, t.Options)
	return vtodo
}

// Encode writes tasks to w as iCalendar.
func Encode(w io.Writer, tasks []domain.Task) error {
	if err := ical.NewEncoder(w).Encode(Calendar(tasks)); err != nil {
		return fmt.Errorf("failed to encode iCalendar: %w", err)
	}
	return nil
}
