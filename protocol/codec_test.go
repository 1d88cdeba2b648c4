package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodeSimpleCommands(t *testing.T) {
	for _, tag := range []string{CmdPlay, CmdPause, CmdNext, CmdPrevious} {
		data, err := EncodeCommand(Command{Command: tag})
		if err != nil {
			t.Fatalf("encode %s: %v", tag, err)
		}

		var decoded map[string]interface{}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("encode %s produced invalid JSON: %v", tag, err)
		}
		if decoded["command"] != tag {
			t.Errorf("expected command %q, got %q", tag, decoded["command"])
		}
		if len(decoded) != 1 {
			t.Errorf("expected only the command field for %s, got %v", tag, decoded)
		}
	}
}

func TestEncodeSeekTo(t *testing.T) {
	ms := 5000
	data, err := EncodeCommand(Command{Command: CmdSeekTo, ValueMs: &ms})
	if err != nil {
		t.Fatalf("encode seek_to: %v", err)
	}

	var decoded struct {
		Command string `json:"command"`
		ValueMs int    `json:"value_ms"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Command != CmdSeekTo || decoded.ValueMs != 5000 {
		t.Errorf("unexpected wire form: %s", data)
	}
	if bytes.Contains(data, []byte("value_percent")) {
		t.Errorf("seek_to must not carry value_percent: %s", data)
	}
}

func TestEncodeSetVolume(t *testing.T) {
	pct := 75
	data, err := EncodeCommand(Command{Command: CmdSetVolume, ValuePercent: &pct})
	if err != nil {
		t.Fatalf("encode set_volume: %v", err)
	}

	var decoded struct {
		Command      string `json:"command"`
		ValuePercent int    `json:"value_percent"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Command != CmdSetVolume || decoded.ValuePercent != 75 {
		t.Errorf("unexpected wire form: %s", data)
	}
	if bytes.Contains(data, []byte("value_ms")) {
		t.Errorf("set_volume must not carry value_ms: %s", data)
	}
}

func TestEncodeRejectsBadCommands(t *testing.T) {
	ms := 1000
	pct := 50

	cases := []struct {
		name string
		cmd  Command
	}{
		{"unknown tag", Command{Command: "rewind"}},
		{"empty tag", Command{}},
		{"play with value_ms", Command{Command: CmdPlay, ValueMs: &ms}},
		{"pause with value_percent", Command{Command: CmdPause, ValuePercent: &pct}},
		{"seek_to missing value_ms", Command{Command: CmdSeekTo}},
		{"seek_to with value_percent", Command{Command: CmdSeekTo, ValueMs: &ms, ValuePercent: &pct}},
		{"set_volume missing value_percent", Command{Command: CmdSetVolume}},
		{"set_volume with value_ms", Command{Command: CmdSetVolume, ValuePercent: &pct, ValueMs: &ms}},
	}

	for _, tc := range cases {
		data, err := EncodeCommand(tc.cmd)
		if err == nil {
			t.Errorf("%s: expected error, got %s", tc.name, data)
			continue
		}
		var encErr *EncodingError
		if !errors.As(err, &encErr) {
			t.Errorf("%s: expected EncodingError, got %T", tc.name, err)
		}
	}
}

func TestDecodeStateUpdate(t *testing.T) {
	payload := []byte(`{"type":"stateUpdate","track":"Song A","artist":"Artist B","is_playing":true,"volume_percent":80}`)
	evt := DecodeNotification(StateSource, payload)

	update, ok := evt.(*StateUpdate)
	if !ok {
		t.Fatalf("expected StateUpdate, got %T", evt)
	}
	if update.Track != "Song A" || update.Artist != "Artist B" {
		t.Errorf("unexpected track/artist: %q / %q", update.Track, update.Artist)
	}
	if !update.IsPlaying || update.VolumePercent != 80 {
		t.Errorf("unexpected playing/volume: %v / %d", update.IsPlaying, update.VolumePercent)
	}
}

func TestDecodeStateUpdateDefaults(t *testing.T) {
	evt := DecodeNotification(StateSource, []byte(`{"type":"stateUpdate"}`))

	update, ok := evt.(*StateUpdate)
	if !ok {
		t.Fatalf("expected StateUpdate, got %T", evt)
	}
	if update.Track != "Unknown" || update.Artist != "Unknown" {
		t.Errorf("expected Unknown defaults, got %q / %q", update.Track, update.Artist)
	}
	if update.IsPlaying || update.VolumePercent != 0 {
		t.Errorf("expected false/0 defaults, got %v / %d", update.IsPlaying, update.VolumePercent)
	}
}

func TestDecodeStateUpdatePartialFields(t *testing.T) {
	evt := DecodeNotification(StateSource, []byte(`{"type":"stateUpdate","track":"Song A","is_playing":true}`))

	update, ok := evt.(*StateUpdate)
	if !ok {
		t.Fatalf("expected StateUpdate, got %T", evt)
	}
	if update.Track != "Song A" || update.Artist != "Unknown" {
		t.Errorf("unexpected track/artist: %q / %q", update.Track, update.Artist)
	}
	if !update.IsPlaying || update.VolumePercent != 0 {
		t.Errorf("unexpected playing/volume: %v / %d", update.IsPlaying, update.VolumePercent)
	}
}

func TestDecodeUnknownStateTypePassesThrough(t *testing.T) {
	evt := DecodeNotification(StateSource, []byte(`{"type":"capabilityChanged","foo":1}`))

	generic, ok := evt.(*GenericEvent)
	if !ok {
		t.Fatalf("expected GenericEvent, got %T", evt)
	}
	fields, ok := generic.Doc.(map[string]interface{})
	if !ok || fields["type"] != "capabilityChanged" {
		t.Errorf("document not preserved: %v", generic.Doc)
	}
}

func TestDecodeMalformedNeverFails(t *testing.T) {
	payloads := [][]byte{
		{0xDE, 0xAD, 0xBE, 0xEF},
		[]byte("not json"),
		[]byte("{truncated"),
		{},
	}

	for _, role := range []EndpointRole{StateSource, DebugSource, InfoSource} {
		for _, payload := range payloads {
			evt := DecodeNotification(role, payload)
			raw, ok := evt.(*RawEvent)
			if !ok {
				t.Fatalf("role %s payload %q: expected RawEvent, got %T", role, payload, evt)
			}
			if !bytes.Equal(raw.Payload, payload) {
				t.Errorf("role %s: payload not preserved: %x != %x", role, raw.Payload, payload)
			}
		}
	}
}

func TestDecodeRawEventCopiesPayload(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	evt := DecodeNotification(StateSource, payload)

	raw := evt.(*RawEvent)
	payload[0] = 0x00
	if raw.Payload[0] != 0xDE {
		t.Error("raw event aliases the caller's buffer")
	}
}

func TestDecodeStateUpdateFieldTypeMismatch(t *testing.T) {
	// Valid JSON, but volume_percent has the wrong type.
	payload := []byte(`{"type":"stateUpdate","volume_percent":"loud"}`)
	evt := DecodeNotification(StateSource, payload)

	if _, ok := evt.(*RawEvent); !ok {
		t.Fatalf("expected RawEvent fallback, got %T", evt)
	}
}

func TestDecodeDebugEvent(t *testing.T) {
	payload := []byte(`{"level":"ERROR","type":"BLE","message":"write failed","data":{"attempt":2}}`)
	evt := DecodeNotification(DebugSource, payload)

	dbg, ok := evt.(*DebugEvent)
	if !ok {
		t.Fatalf("expected DebugEvent, got %T", evt)
	}
	if dbg.Level != LevelError || dbg.Type != "BLE" || dbg.Message != "write failed" {
		t.Errorf("unexpected fields: %+v", dbg)
	}
	if dbg.Data == nil {
		t.Error("data field dropped")
	}
}

func TestDecodeDebugEventDefaults(t *testing.T) {
	evt := DecodeNotification(DebugSource, []byte(`{"message":"hello"}`))

	dbg, ok := evt.(*DebugEvent)
	if !ok {
		t.Fatalf("expected DebugEvent, got %T", evt)
	}
	if dbg.Level != LevelInfo {
		t.Errorf("expected INFO default, got %s", dbg.Level)
	}
	if dbg.Type != "LOG" {
		t.Errorf("expected LOG default, got %s", dbg.Type)
	}
}

func TestDecodeDebugEventUnrecognizedLevel(t *testing.T) {
	evt := DecodeNotification(DebugSource, []byte(`{"level":"TRACE","message":"x"}`))

	dbg := evt.(*DebugEvent)
	if dbg.Level != LevelInfo {
		t.Errorf("unrecognized level should normalize to INFO, got %s", dbg.Level)
	}
}

func TestDecodeInfo(t *testing.T) {
	payload := []byte(`{"device":"NocturneCompanion","version":"2.1","capabilities":["media"]}`)
	info, err := DecodeInfo(payload)
	if err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if !bytes.Equal(info.Raw, payload) {
		t.Error("raw document not preserved")
	}
	if info.Fields["device"] != "NocturneCompanion" {
		t.Errorf("fields not parsed: %v", info.Fields)
	}
}

func TestDecodeInfoMalformed(t *testing.T) {
	info, err := DecodeInfo([]byte("garbage"))
	if err == nil {
		t.Fatalf("expected error, got %+v", info)
	}
	var decErr *DecodingError
	if !errors.As(err, &decErr) {
		t.Errorf("expected DecodingError, got %T", err)
	}
}

func TestResolveCoversAllRoles(t *testing.T) {
	roles := map[EndpointRole]string{
		CommandSink: CommandCharUUID,
		StateSource: StateCharUUID,
		DebugSource: DebugCharUUID,
		InfoSource:  InfoCharUUID,
	}
	for role, want := range roles {
		if got := Resolve(role); got != want {
			t.Errorf("Resolve(%s) = %q, want %q", role, got, want)
		}
	}
}
