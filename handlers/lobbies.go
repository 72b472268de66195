package handlers

import (
	"log"
	"net/http"

	"github.com/pixelgrove/holospace/holospace-backend/common"
	"github.com/pixelgrove/holospace/holospace-backend/models"
	"github.com/pixelgrove/holospace/holospace-backend/responses"
	"github.com/pixelgrove/holospace/holospace-backend/utils"
)

// ListLobbies returns the metadata of every open lobby, for the lobby
// browser screen.
func (s *Server) ListLobbies(w http.ResponseWriter, r *http.Request) {
	utils.HandleSuccess(w, models.SuccessResponse(s.Coordinator.ListLobbies()))
}

// LobbyHistory returns the archived summaries of lobbies the caller was a
// member of.
func (s *Server) LobbyHistory(w http.ResponseWriter, r *http.Request) {
	authInfo, ok := r.Context().Value(common.AuthInfoKey).(*models.CustomClaims)
	if !ok {
		utils.HandleError(w, responses.InternalServerError{Msg: "Error processing request."})
		return
	}

	if s.Archive == nil {
		utils.HandleSuccess(w, models.SuccessResponse([]models.LobbySummary{}))
		return
	}

	summaries, err := s.Archive.UserLobbyHistory(authInfo.ID)
	if err != nil {
		log.Printf("Error fetching lobby history for user %s: %v", authInfo.ID, err)
		utils.HandleError(w, responses.InternalServerError{Msg: "Failed to fetch lobby history."})
		return
	}

	if summaries == nil {
		summaries = []models.LobbySummary{}
	}
	utils.HandleSuccess(w, models.SuccessResponse(summaries))
}
