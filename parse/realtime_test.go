package parse

import (
	"testing"
	"time"

	gtfsproto "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	proto "google.golang.org/protobuf/proto"
)

func header() *gtfsproto.FeedHeader {
	return &gtfsproto.FeedHeader{
		GtfsRealtimeVersion: proto.String("2.0"),
		Incrementality:      gtfsproto.FeedHeader_FULL_DATASET.Enum(),
		Timestamp:           proto.Uint64(1711951200),
	}
}

func text(translations ...string) *gtfsproto.TranslatedString {
	ts := &gtfsproto.TranslatedString{}
	for i := 0; i+1 < len(translations); i += 2 {
		ts.Translation = append(ts.Translation, &gtfsproto.TranslatedString_Translation{
			Language: proto.String(translations[i]),
			Text:     proto.String(translations[i+1]),
		})
	}
	return ts
}

func TestParseRealtimeAlertsBadHeader(t *testing.T) {
	// This one's fine
	incrementality := gtfsproto.FeedHeader_FULL_DATASET
	data, err := proto.Marshal(&gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      &incrementality,
			Timestamp:           proto.Uint64(1711951200),
		},
	})
	require.NoError(t, err)
	alerts, err := ParseRealtimeAlerts([][]byte{data})
	assert.NoError(t, err)
	assert.Equal(t, 0, len(alerts))

	// Unsupported version
	data, err = proto.Marshal(&gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("3.0"),
			Incrementality:      &incrementality,
		},
	})
	require.NoError(t, err)
	_, err = ParseRealtimeAlerts([][]byte{data})
	assert.Error(t, err)

	// Unsupported incrementality
	incrementality = gtfsproto.FeedHeader_DIFFERENTIAL
	data, err = proto.Marshal(&gtfsproto.FeedMessage{
		Header: &gtfsproto.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      &incrementality,
		},
	})
	require.NoError(t, err)
	_, err = ParseRealtimeAlerts([][]byte{data})
	assert.Error(t, err)

	// Not protobuf at all
	_, err = ParseRealtimeAlerts([][]byte{[]byte("<html>oops</html>")})
	assert.Error(t, err)
}

func TestParseRealtimeAlerts(t *testing.T) {
	start := time.Date(2024, 4, 1, 6, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)

	data, err := proto.Marshal(&gtfsproto.FeedMessage{
		Header: header(),
		Entity: []*gtfsproto.FeedEntity{
			{
				Id: proto.String("closure"),
				Alert: &gtfsproto.Alert{
					ActivePeriod: []*gtfsproto.TimeRange{
						{Start: proto.Uint64(uint64(start.Unix())), End: proto.Uint64(uint64(end.Unix()))},
					},
					InformedEntity: []*gtfsproto.EntitySelector{
						{RouteId: proto.String("lrt2"), StopId: proto.String("lrt2-santolan")},
						{RouteId: proto.String("lrt2"), StopId: proto.String("lrt2-marikina")},
						{RouteId: proto.String("lrt2"), StopId: proto.String("lrt2-santolan")},
					},
					Effect:          gtfsproto.Alert_NO_SERVICE.Enum(),
					HeaderText:      text("tl", "Sarado ang Santolan", "en", "Santolan closed"),
					DescriptionText: text("tl", "Dahil sa pagkukumpuni"),
				},
			},
			{
				Id: proto.String("elevator"),
				Alert: &gtfsproto.Alert{
					InformedEntity: []*gtfsproto.EntitySelector{
						{StopId: proto.String("lrt2-cubao")},
					},
					Effect:     gtfsproto.Alert_REDUCED_SERVICE.Enum(),
					HeaderText: text("en", "Elevator out of order"),
				},
			},
			{
				// Not an alert
				Id: proto.String("vehicle"),
				Vehicle: &gtfsproto.VehiclePosition{
					Vehicle: &gtfsproto.VehicleDescriptor{Id: proto.String("train-7")},
				},
			},
		},
	})
	require.NoError(t, err)

	alerts, err := ParseRealtimeAlerts([][]byte{data})
	require.NoError(t, err)
	require.Equal(t, 2, len(alerts))

	closure := alerts[0]
	assert.Equal(t, "closure", closure.ID)
	assert.Equal(t, "lrt2", closure.LineID)
	assert.Equal(t, "Santolan closed", closure.Title)
	assert.Equal(t, "Dahil sa pagkukumpuni", closure.Message)
	assert.Equal(t, []string{"lrt2-santolan", "lrt2-marikina"}, closure.StopIDs)
	assert.True(t, closure.DisablesStops)
	assert.True(t, closure.Start.Equal(start))
	assert.True(t, closure.End.Equal(end))

	elevator := alerts[1]
	assert.Equal(t, "elevator", elevator.ID)
	assert.Equal(t, "", elevator.LineID)
	assert.False(t, elevator.DisablesStops)
	assert.True(t, elevator.Start.IsZero())
	assert.True(t, elevator.End.IsZero())
	assert.True(t, elevator.ActiveAt(start))
}

func TestParseRealtimeAlertsMultiplePeriods(t *testing.T) {
	data, err := proto.Marshal(&gtfsproto.FeedMessage{
		Header: header(),
		Entity: []*gtfsproto.FeedEntity{
			{
				Id: proto.String("weekend"),
				Alert: &gtfsproto.Alert{
					ActivePeriod: []*gtfsproto.TimeRange{
						{Start: proto.Uint64(1000), End: proto.Uint64(2000)},
						{Start: proto.Uint64(5000)},
					},
					InformedEntity: []*gtfsproto.EntitySelector{
						{RouteId: proto.String("mrt3"), StopId: proto.String("mrt3-taft")},
					},
					Effect: gtfsproto.Alert_NO_SERVICE.Enum(),
				},
			},
		},
	})
	require.NoError(t, err)

	alerts, err := ParseRealtimeAlerts([][]byte{data})
	require.NoError(t, err)
	require.Equal(t, 2, len(alerts))

	assert.Equal(t, "weekend:0", alerts[0].ID)
	assert.Equal(t, int64(1000), alerts[0].Start.Unix())
	assert.Equal(t, int64(2000), alerts[0].End.Unix())

	assert.Equal(t, "weekend:1", alerts[1].ID)
	assert.Equal(t, int64(5000), alerts[1].Start.Unix())
	assert.True(t, alerts[1].End.IsZero())

	// Stop lists are not shared between periods
	alerts[0].StopIDs[0] = "changed"
	assert.Equal(t, "mrt3-taft", alerts[1].StopIDs[0])
}

func TestParseRealtimeAlertsMultipleFeeds(t *testing.T) {
	feed := func(id string) []byte {
		data, err := proto.Marshal(&gtfsproto.FeedMessage{
			Header: header(),
			Entity: []*gtfsproto.FeedEntity{
				{
					Id: proto.String(id),
					Alert: &gtfsproto.Alert{
						HeaderText: text("en", id),
					},
				},
			},
		})
		require.NoError(t, err)
		return data
	}

	alerts, err := ParseRealtimeAlerts([][]byte{feed("a"), feed("b")})
	require.NoError(t, err)
	require.Equal(t, 2, len(alerts))
	assert.Equal(t, "a", alerts[0].Title)
	assert.Equal(t, "b", alerts[1].Title)

	// Entities without ID get one assigned
	data, err := proto.Marshal(&gtfsproto.FeedMessage{
		Header: header(),
		Entity: []*gtfsproto.FeedEntity{
			{Alert: &gtfsproto.Alert{HeaderText: text("en", "anonymous")}},
		},
	})
	require.NoError(t, err)
	alerts, err = ParseRealtimeAlerts([][]byte{data})
	require.NoError(t, err)
	require.Equal(t, 1, len(alerts))
	assert.NotEmpty(t, alerts[0].ID)
}
