package protocol

import (
	"testing"

	"github.com/marmat/mapracer/pkg/geo"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLogin(t *testing.T) {
	data := []byte(`{"type": "login", "payload": {"id": "player-1", "name": "Martin"}}`)

	message, err := Decode(data, false)
	require.NoError(t, err)

	login, ok := message.(*Login)
	require.True(t, ok)
	assert.Equal(t, "player-1", login.ID)
	assert.Equal(t, "Martin", login.Name)
}

func TestDecodeLoginWithoutID(t *testing.T) {
	data := []byte(`{"type": "login", "payload": {"name": "Nobody"}}`)

	_, err := Decode(data, false)
	assert.Error(t, err)
}

func TestDecodePosition(t *testing.T) {
	data := []byte(`{"type": "position", "payload": {"location": {"lat": 52.5, "lng": 13.4}}}`)

	message, err := Decode(data, false)
	require.NoError(t, err)

	position, ok := message.(*Position)
	require.True(t, ok)
	assert.Equal(t, 52.5, position.Location.Lat)
	assert.Equal(t, 13.4, position.Location.Lng)
}

func TestDecodeRequestPartial(t *testing.T) {
	data := []byte(`{"type": "request", "payload": {"target_title": "Reichstag"}}`)

	message, err := Decode(data, false)
	require.NoError(t, err)

	request, ok := message.(*Request)
	require.True(t, ok)
	assert.Equal(t, "Reichstag", request.TargetTitle)
	assert.Nil(t, request.StartLocation)
	assert.Nil(t, request.TargetLocation)
}

func TestDecodeLogoutWithoutPayload(t *testing.T) {
	data := []byte(`{"type": "logout"}`)

	message, err := Decode(data, false)
	require.NoError(t, err)
	assert.Equal(t, LogoutMessage, message.Type())
}

func TestDecodeUnknownType(t *testing.T) {
	data := []byte(`{"type": "teleport", "payload": {}}`)

	_, err := Decode(data, false)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte(`{{{`), false)
	assert.Error(t, err)

	_, err = Decode([]byte(`{"type": "position", "payload": "not an object"}`), false)
	assert.Error(t, err)
}

func TestRoundTripJSON(t *testing.T) {
	original := GameState{
		State:   "race",
		Players: 3,
		Race: RaceSnapshot{
			ID:             "abc",
			TargetTitle:    "Fernsehturm",
			StartLocation:  &geo.LatLng{Lat: 1, Lng: 2},
			TargetLocation: &geo.LatLng{Lat: 3, Lng: 4},
			StartTime:      1234567890,
		},
	}

	data, err := Encode(original, false)
	require.NoError(t, err)

	decoded, err := Decode(data, false)
	require.NoError(t, err)

	state, ok := decoded.(*GameState)
	require.True(t, ok)
	assert.Equal(t, original, *state)
}

func TestRoundTripCBOR(t *testing.T) {
	original := PlayerState{State: "finished"}

	data, err := Encode(original, true)
	require.NoError(t, err)

	decoded, err := Decode(data, true)
	require.NoError(t, err)

	state, ok := decoded.(*PlayerState)
	require.True(t, ok)
	assert.Equal(t, original, *state)
}
