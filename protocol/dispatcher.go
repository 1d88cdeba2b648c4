package protocol

import "log"

// CharacteristicWriter is the slice of the transport the dispatcher needs:
// handing one encoded message to one characteristic.
type CharacteristicWriter interface {
	Write(characteristicUUID string, payload []byte) error
}

// Dispatcher turns operator intents into encoded commands on the command
// sink. Calls are fire-and-forget: a nil return means the bytes reached
// the transport write, not that the device acted on them. Confirmation
// only ever arrives asynchronously as the next state update.
type Dispatcher struct {
	writer CharacteristicWriter
}

func NewDispatcher(writer CharacteristicWriter) *Dispatcher {
	return &Dispatcher{writer: writer}
}

func (d *Dispatcher) Play() error {
	return d.send(Command{Command: CmdPlay})
}

func (d *Dispatcher) Pause() error {
	return d.send(Command{Command: CmdPause})
}

func (d *Dispatcher) NextTrack() error {
	return d.send(Command{Command: CmdNext})
}

func (d *Dispatcher) PreviousTrack() error {
	return d.send(Command{Command: CmdPrevious})
}

// SeekTo seeks to an absolute playback position. Negative positions are
// rejected before anything is encoded or written.
func (d *Dispatcher) SeekTo(valueMs int) error {
	if valueMs < 0 {
		return &ValidationError{Field: "value_ms", Reason: "must not be negative"}
	}
	return d.send(Command{Command: CmdSeekTo, ValueMs: &valueMs})
}

// SetVolume sets the playback volume. Percentages outside [0,100] are
// rejected before anything is encoded or written.
func (d *Dispatcher) SetVolume(valuePercent int) error {
	if valuePercent < 0 || valuePercent > 100 {
		return &ValidationError{Field: "value_percent", Reason: "must be between 0 and 100"}
	}
	return d.send(Command{Command: CmdSetVolume, ValuePercent: &valuePercent})
}

func (d *Dispatcher) send(cmd Command) error {
	data, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}

	log.Printf("DISPATCH: sending command %s (%d bytes)", cmd.Command, len(data))
	return d.writer.Write(Resolve(CommandSink), data)
}
