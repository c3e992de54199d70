package http

import (
	"net/http"

	"github.com/dkeye/MeshCall/internal/app/orch"
	"github.com/dkeye/MeshCall/internal/core"
	"github.com/dkeye/MeshCall/internal/domain"
	"github.com/gin-gonic/gin"
)

type RoomsResponse struct {
	Rooms []core.RoomInfo `json:"rooms"`
}

type RoomResponse struct {
	core.RoomInfo
	Members []domain.UserID `json:"members"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}

type roomsHandler struct {
	orch *orch.Orchestrator
}

func (h roomsHandler) list(c *gin.Context) {
	rooms := h.orch.ListRooms()
	if rooms == nil {
		rooms = []core.RoomInfo{}
	}
	c.JSON(http.StatusOK, RoomsResponse{Rooms: rooms})
}

func (h roomsHandler) get(c *gin.Context) {
	name := domain.RoomName(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing room name"})
		return
	}
	info, members, ok := h.orch.RoomMembers(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, RoomResponse{RoomInfo: info, Members: members})
}

func (h roomsHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "ok",
		Connections: h.orch.Registry.Count(),
		Rooms:       h.orch.Rooms.Count(),
	})
}
