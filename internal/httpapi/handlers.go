package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/L-Mariam/Grocery-Guessr/game"
	"github.com/gorilla/mux"
)

var routeList = []string{
	"GET /health",
	"GET /currencies",
	"GET /achievements",
	"POST /posts",
	"GET /posts/{postId}",
	"POST /posts/{postId}/guesses",
	"GET /posts/{postId}/reveal",
	"GET /users/{username}/stats",
	"GET /me/stats",
	"GET /leaderboard",
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	success(w, http.StatusOK, map[string]interface{}{
		"name":       s.config.Name,
		"version":    core.Version,
		"howToPlay":  game.HowToPlay,
		"routes":     routeList,
		"apiVersion": core.APIVersion,
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Ping(r.Context()); err != nil {
		s.logger.WarnWithContext(r.Context(), "Health check failed", map[string]interface{}{
			"operation": "health",
			"error":     err,
		})
		failure(w, http.StatusServiceUnavailable, core.UserMessage(err), nil)
		return
	}
	success(w, http.StatusOK, map[string]string{"status": "healthy", "version": core.Version})
}

func (s *Server) currencies(w http.ResponseWriter, r *http.Request) {
	success(w, http.StatusOK, game.GetSupportedCurrencies())
}

func (s *Server) achievements(w http.ResponseWriter, r *http.Request) {
	success(w, http.StatusOK, game.Catalog())
}

func (s *Server) createPost(w http.ResponseWriter, r *http.Request) {
	var draft game.PostDraft
	if !decodeBody(w, r, &draft) {
		return
	}

	res, err := s.manager.CreatePost(r.Context(), UserFromContext(r.Context()), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusCreated, res)
}

func (s *Server) getPost(w http.ResponseWriter, r *http.Request) {
	view, err := s.manager.GetPost(r.Context(), mux.Vars(r)["postId"], UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, view)
}

type guessRequest struct {
	// Guess is accepted as a JSON number or a string.
	Guess json.RawMessage `json:"guess"`
}

func (g guessRequest) raw() string {
	b := bytes.TrimSpace(g.Guess)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			return s
		}
	}
	if bytes.Equal(b, []byte("null")) {
		return ""
	}
	return string(b)
}

func (s *Server) submitGuess(w http.ResponseWriter, r *http.Request) {
	var req guessRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.manager.SubmitGuess(r.Context(), mux.Vars(r)["postId"], UserFromContext(r.Context()), req.raw())
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, res)
}

func (s *Server) revealPost(w http.ResponseWriter, r *http.Request) {
	reveal, err := s.manager.RevealPost(r.Context(), mux.Vars(r)["postId"], UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, reveal)
}

func (s *Server) userStats(w http.ResponseWriter, r *http.Request) {
	s.writeStats(w, r, mux.Vars(r)["username"])
}

func (s *Server) myStats(w http.ResponseWriter, r *http.Request) {
	s.writeStats(w, r, UserFromContext(r.Context()))
}

func (s *Server) writeStats(w http.ResponseWriter, r *http.Request, username string) {
	stats, err := s.manager.GetStats(r.Context(), username)
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, stats)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := s.manager.GetLeaderboard(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	success(w, http.StatusOK, board)
}

// decodeBody reads a JSON body into v, answering 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		failure(w, http.StatusBadRequest, "Invalid request body.", nil)
		return false
	}
	return true
}
