package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/UseLizard/NocturneCompanion/protocol"
	"github.com/UseLizard/NocturneCompanion/session"
	"github.com/UseLizard/NocturneCompanion/utils"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	State     string      `json:"state"`
	LastState *MediaState `json:"last_state"`
	Clients   int         `json:"monitor_clients"`
}

type MediaState struct {
	Track         string `json:"track"`
	Artist        string `json:"artist"`
	IsPlaying     bool   `json:"is_playing"`
	VolumePercent int    `json:"volume_percent"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes the live session over HTTP: a WebSocket event stream for
// monitor UIs plus REST wrappers around the command dispatcher.
type Server struct {
	sess   *session.Session
	wsHub  *utils.WebSocketHub
	router *http.ServeMux
	http   *http.Server
}

// NewServer creates a monitor server for one session.
func NewServer(sess *session.Session, wsHub *utils.WebSocketHub, addr string) *Server {
	s := &Server{
		sess:   sess,
		wsHub:  wsHub,
		router: http.NewServeMux(),
	}
	s.http = &http.Server{Addr: addr, Handler: s.router}
	s.registerRoutes()
	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		log.Printf("MONITOR: serving on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("MONITOR: server stopped: %v", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		log.Printf("MONITOR: shutdown failed: %v", err)
	}
}

func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("MONITOR: failed to upgrade connection: %v", err)
			return
		}
		s.wsHub.AddClient(conn)
	})

	// GET /status
	s.router.HandleFunc("/status", corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
			return
		}

		resp := StatusResponse{
			State:   s.sess.State().String(),
			Clients: s.wsHub.ClientCount(),
		}
		if last := s.sess.LastState(); last != nil {
			resp.LastState = &MediaState{
				Track:         last.Track,
				Artist:        last.Artist,
				IsPlaying:     last.IsPlaying,
				VolumePercent: last.VolumePercent,
			}
		}

		json.NewEncoder(w).Encode(resp)
	}))

	// GET /info
	s.router.HandleFunc("/info", corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
			return
		}

		info := s.sess.DeviceInfo()
		if info == nil {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "Device info not loaded"})
			return
		}

		w.Write(info.Raw)
	}))

	// POST /media/{play,pause,next,previous}
	for path, send := range map[string]func() error{
		"/media/play":     func() error { return s.sess.Dispatcher().Play() },
		"/media/pause":    func() error { return s.sess.Dispatcher().Pause() },
		"/media/next":     func() error { return s.sess.Dispatcher().NextTrack() },
		"/media/previous": func() error { return s.sess.Dispatcher().PreviousTrack() },
	} {
		send := send
		s.router.HandleFunc(path, corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != "POST" {
				w.WriteHeader(http.StatusMethodNotAllowed)
				json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
				return
			}
			s.dispatch(w, send)
		}))
	}

	// POST /media/seek/{position_ms}
	s.router.HandleFunc("/media/seek/", corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
			return
		}

		positionStr := strings.TrimPrefix(r.URL.Path, "/media/seek/")
		position, err := strconv.Atoi(positionStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "Invalid position value"})
			return
		}

		s.dispatch(w, func() error { return s.sess.Dispatcher().SeekTo(position) })
	}))

	// POST /media/volume/{percent}
	s.router.HandleFunc("/media/volume/", corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "Method not allowed"})
			return
		}

		volumeStr := strings.TrimPrefix(r.URL.Path, "/media/volume/")
		volume, err := strconv.Atoi(volumeStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(ErrorResponse{Error: "Invalid volume value"})
			return
		}

		s.dispatch(w, func() error { return s.sess.Dispatcher().SetVolume(volume) })
	}))
}

func (s *Server) dispatch(w http.ResponseWriter, send func() error) {
	if err := send(); err != nil {
		var verr *protocol.ValidationError
		if errors.As(err, &verr) {
			w.WriteHeader(http.StatusBadRequest)
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
		json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}
