package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllDelivered(t *testing.T) {
	delivered := DispatchOutcome{Kind: OutcomeDelivered, StatusCode: 200}
	rejected := DispatchOutcome{Kind: OutcomeRejectedByServer, StatusCode: 500}
	failed := DispatchOutcome{Kind: OutcomeTransportFailure, Err: errors.New("refused")}

	tests := []struct {
		name     string
		outcomes []DispatchOutcome
		expected bool
	}{
		{name: "no attempts", outcomes: nil, expected: false},
		{name: "single delivered", outcomes: []DispatchOutcome{delivered}, expected: true},
		{name: "all delivered", outcomes: []DispatchOutcome{delivered, delivered}, expected: true},
		{name: "one rejected", outcomes: []DispatchOutcome{delivered, rejected}, expected: false},
		{name: "one transport failure", outcomes: []DispatchOutcome{failed, delivered}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AllDelivered(tt.outcomes))
		})
	}
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "delivered", OutcomeDelivered.String())
	assert.Equal(t, "rejected", OutcomeRejectedByServer.String())
	assert.Equal(t, "transport_failure", OutcomeTransportFailure.String())
	assert.Equal(t, "unknown(9)", OutcomeKind(9).String())
}

func TestEnabledFiltering(t *testing.T) {
	folders := []WatchedFolder{
		{Path: "/a", Enabled: true},
		{Path: "/b", Enabled: false},
		{Path: "/c", Enabled: true, Recursive: true},
	}
	enabled := EnabledFolders(folders)
	assert.Equal(t, []WatchedFolder{folders[0], folders[2]}, enabled)

	endpoints := []WebhookEndpoint{
		{Name: "main", URL: "http://x", Enabled: true},
		{Name: "blank", URL: "", Enabled: true},
		{Name: "off", URL: "http://y", Enabled: false},
		{Name: "dup", URL: "http://x", Enabled: true},
	}
	eps := EnabledEndpoints(endpoints)
	assert.Equal(t, []string{"main", "dup"}, EndpointNames(eps))
}

func TestDeliveryRecordToParquet(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	row := DeliveryRecord{
		SessionID:    "s1",
		FilePath:     "/w/a.png",
		EndpointName: "main",
		Outcome:      OutcomeRejectedByServer.String(),
		StatusCode:   500,
		Error:        "HTTP 500",
		AttemptedAt:  at,
	}.ToParquet()

	if assert.NotNil(t, row.StatusCode) {
		assert.Equal(t, int32(500), *row.StatusCode)
	}
	if assert.NotNil(t, row.Error) {
		assert.Equal(t, "HTTP 500", *row.Error)
	}
	assert.Equal(t, at.UnixMilli(), row.AttemptedAt)

	transport := DeliveryRecord{Outcome: "transport_failure", AttemptedAt: at}.ToParquet()
	assert.Nil(t, transport.StatusCode)
	assert.Nil(t, transport.Error)
}
