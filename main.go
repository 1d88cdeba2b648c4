package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/UseLizard/NocturneCompanion/bluetooth"
	"github.com/UseLizard/NocturneCompanion/protocol"
	"github.com/UseLizard/NocturneCompanion/server"
	"github.com/UseLizard/NocturneCompanion/session"
	"github.com/UseLizard/NocturneCompanion/utils"
)

var levelSymbols = map[protocol.DebugLevel]string{
	protocol.LevelError:   "❌",
	protocol.LevelWarning: "⚠️",
	protocol.LevelInfo:    "ℹ️",
	protocol.LevelDebug:   "🔧",
	protocol.LevelVerbose: "📝",
}

func main() {
	configPath := flag.String("config", "", "path to config.toml")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("Warning: Could not open log file: %v", err)
		} else {
			log.SetOutput(io.MultiWriter(os.Stderr, logFile))
			defer logFile.Close()
			log.Printf("Logging to %s", cfg.LogFile)
		}
	}

	fmt.Println("🚀 NocturneCompanion BLE Test Client")
	fmt.Println("====================================")

	wsHub := utils.NewWebSocketHub()

	transport, err := bluetooth.NewTransport(bluetooth.Config{
		DeviceName:  cfg.DeviceName,
		ServiceUUID: cfg.ServiceUUID,
		ScanTimeout: cfg.ScanTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize BLE transport: %v", err)
	}

	sess := session.New(transport, wsHub)
	transport.SetDisconnectHandler(sess.LinkLost)

	sess.OnState(printStateEvent)
	sess.OnDebug(printDebugEvent)

	monitor := server.NewServer(sess, wsHub, cfg.ListenAddr)
	monitor.Start()
	defer monitor.Shutdown()

	if err := sess.Start(); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	defer sess.Close()

	printDeviceInfo(sess.DeviceInfo())

	// Give the companion a moment to push the initial state update.
	time.Sleep(1 * time.Second)

	interactiveLoop(sess, transport)

	fmt.Println("\n👋 Disconnected")
}

func interactiveLoop(sess *session.Session, transport *bluetooth.Transport) {
	fmt.Println("\n🎮 Interactive Mode - Available commands:")
	fmt.Println("  play       - Start playback")
	fmt.Println("  pause      - Pause playback")
	fmt.Println("  next       - Next track")
	fmt.Println("  prev       - Previous track")
	fmt.Println("  seek <ms>  - Seek to position in milliseconds")
	fmt.Println("  vol <0-100>- Set volume percentage")
	fmt.Println("  info       - Show device info")
	fmt.Println("  status     - Show session status")
	fmt.Println("  quit       - Exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if sess.State() == session.Disconnected {
			fmt.Println("Session ended")
			return
		}

		fmt.Print("📝 Enter command: ")
		if !scanner.Scan() {
			return
		}
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		var err error
		switch fields[0] {
		case "quit", "exit":
			return
		case "play":
			err = sess.Dispatcher().Play()
		case "pause":
			err = sess.Dispatcher().Pause()
		case "next":
			err = sess.Dispatcher().NextTrack()
		case "prev", "previous":
			err = sess.Dispatcher().PreviousTrack()
		case "seek":
			var ms int
			if ms, err = intArg(fields); err == nil {
				err = sess.Dispatcher().SeekTo(ms)
			}
		case "vol", "volume":
			var pct int
			if pct, err = intArg(fields); err == nil {
				err = sess.Dispatcher().SetVolume(pct)
			}
		case "info":
			printDeviceInfo(sess.DeviceInfo())
		case "status":
			fmt.Printf("Session: %s, peer: %s\n", sess.State(), transport.PeerAddress())
			if last := sess.LastState(); last != nil {
				fmt.Printf("  🎵 %s - %s (playing: %v, volume: %d%%)\n",
					last.Track, last.Artist, last.IsPlaying, last.VolumePercent)
			}
		default:
			fmt.Println("❓ Unknown command")
		}

		if err != nil {
			fmt.Printf("❌ Error: %v\n", err)
		}

		// Small delay to see responses before the next prompt.
		time.Sleep(100 * time.Millisecond)
	}
}

func intArg(fields []string) (int, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("missing value")
	}
	return strconv.Atoi(fields[1])
}

func printStateEvent(evt protocol.Event, receivedAt time.Time) {
	timestamp := receivedAt.Format("15:04:05.000")
	switch e := evt.(type) {
	case *protocol.StateUpdate:
		fmt.Printf("\n📨 [%s] State Update:\n", timestamp)
		fmt.Printf("  🎵 %s - %s\n", e.Track, e.Artist)
		fmt.Printf("  ▶️  Playing: %v\n", e.IsPlaying)
		fmt.Printf("  🔊 Volume: %d%%\n", e.VolumePercent)
	case *protocol.GenericEvent:
		pretty, _ := json.MarshalIndent(e.Doc, "  ", "  ")
		fmt.Printf("\n📨 [%s] State message:\n  %s\n", timestamp, pretty)
	case *protocol.RawEvent:
		fmt.Printf("📦 [%s] Raw data: %x\n", timestamp, e.Payload)
	}
}

func printDebugEvent(evt protocol.Event, receivedAt time.Time) {
	timestamp := receivedAt.Format("15:04:05.000")
	switch e := evt.(type) {
	case *protocol.DebugEvent:
		symbol, ok := levelSymbols[e.Level]
		if !ok {
			symbol = "📝"
		}
		fmt.Printf("%s [%s] %s: %s\n", symbol, timestamp, e.Type, e.Message)
		if e.Data != nil {
			data, _ := json.Marshal(e.Data)
			fmt.Printf("   Data: %s\n", data)
		}
	case *protocol.RawEvent:
		fmt.Printf("📦 [%s] Raw data: %x\n", timestamp, e.Payload)
	}
}

func printDeviceInfo(info *protocol.DeviceInfo) {
	if info == nil {
		fmt.Println("❌ Device info not loaded")
		return
	}

	var doc interface{}
	if err := json.Unmarshal(info.Raw, &doc); err == nil {
		if pretty, err := json.MarshalIndent(doc, "", "  "); err == nil {
			fmt.Println("\n📊 Device Capabilities:")
			fmt.Println(string(pretty))
			return
		}
	}
	fmt.Printf("\n📊 Device Capabilities: %s\n", info.Raw)
}
