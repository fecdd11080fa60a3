package server

import (
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"
)

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Say     *twimlSay    `xml:"Say,omitempty"`
	Connect twimlConnect `xml:"Connect"`
}

type twimlSay struct {
	Voice string `xml:"voice,attr,omitempty"`
	Text  string `xml:",chardata"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL string `xml:"url,attr"`
}

// streamURL is where the carrier should open the media stream. Without a
// configured public URL it is derived from the request host.
func (s *Server) streamURL(r *http.Request) string {
	base := strings.TrimSuffix(s.cfg.PublicURL, "/")
	if base == "" {
		scheme := "wss"
		if r.TLS == nil && r.Header.Get("X-Forwarded-Proto") != "https" {
			scheme = "ws"
		}
		base = scheme + "://" + r.Host
	}
	return base + s.cfg.MediaPath
}

// handleTwiML answers the carrier's call webhook with instructions to
// connect the call audio to the media-stream endpoint.
func (s *Server) handleTwiML(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	s.logger.Info("Incoming call",
		slog.String("call_sid", r.PostForm.Get("CallSid")),
		slog.String("from", r.PostForm.Get("From")))

	resp := twimlResponse{
		Connect: twimlConnect{Stream: twimlStream{URL: s.streamURL(r)}},
	}
	if s.cfg.Announcement != "" {
		resp.Say = &twimlSay{Voice: s.cfg.AnnouncementVoice, Text: s.cfg.Announcement}
	}

	body, err := xml.Marshal(resp)
	if err != nil {
		s.logger.Error("Failed to render TwiML", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(body)
}
