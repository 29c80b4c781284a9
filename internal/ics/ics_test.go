package ics

import (
	"bytes"
	"testing"
	"time"

	"github.com/beekhof/exchange-sync/internal/domain"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tasks := []domain.Task{
		{
			Name:               "Release sync",
			Kind:               domain.TaskKindNotify,
			ProjectCode:        "ABC",
			ExternalID:         "AAMkAGI2",
			ExternalModifiedAt: 1718387110,
			StartAt:            1718438400,
			Options:            `{"channel":"#rel, ops","project":"ABC"}`,
		},
		{
			Name:               "Standup; daily",
			Kind:               domain.TaskKindNotify,
			ProjectCode:        "XYZ",
			ExternalID:         "AAMkAGI3",
			ExternalModifiedAt: 1718387110,
			StartAt:            1718442000,
			Options:            `{"project":"XYZ"}`,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, tasks))

	cal, err := ical.NewDecoder(&buf).Decode()
	require.NoError(t, err)

	productID, err := cal.Props.Text(ical.PropProductID)
	require.NoError(t, err)
	assert.Equal(t, ProductID, productID)

	var todos []*ical.Component
	for _, child := range cal.Children {
		if child.Name == ical.CompToDo {
			todos = append(todos, child)
		}
	}
	require.Len(t, todos, 2)

	first := todos[0]
	text := func(c *ical.Component, name string) string {
		t.Helper()
		v, err := c.Props.Text(name)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "AAMkAGI2", text(first, ical.PropUID))
	assert.Equal(t, "Release sync", text(first, ical.PropSummary))
	assert.Equal(t, "ABC", text(first, ical.PropCategories))
	assert.Equal(t, "notify", text(first, PropKind))
	assert.Equal(t, `{"channel":"#rel, ops","project":"ABC"}`, text(first, PropOptions))

	start, err := first.Props.DateTime(ical.PropDateTimeStart, time.UTC)
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2024, 6, 15, 8, 0, 0, 0, time.UTC)), "got %v", start)

	modified, err := first.Props.DateTime(ical.PropLastModified, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, int64(1718387110), modified.Unix())

	assert.Equal(t, "Standup; daily", text(todos[1], ical.PropSummary))
}
