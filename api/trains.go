package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/railbooking/internal/domain"
	"github.com/Domenick1991/railbooking/internal/service/trains"
	"github.com/gin-gonic/gin"
)

type TrainHandler struct {
	service trains.UseCase
}

type trainRunResponse struct {
	ID             int64  `json:"id"`
	Number         string `json:"number"`
	Name           string `json:"name"`
	Source         string `json:"source"`
	Destination    string `json:"destination"`
	DepartureTime  string `json:"departure_time"`
	ArrivalTime    string `json:"arrival_time"`
	Class          string `json:"class"`
	TotalSeats     int    `json:"total_seats"`
	AvailableSeats int    `json:"available_seats"`
	Fare           string `json:"fare"`
}

func NewTrainHandler(service trains.UseCase) *TrainHandler {
	return &TrainHandler{service: service}
}

func (h *TrainHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
	router.GET("/search", h.search)
	router.GET("/number/:number", h.byNumber)
	router.GET("/:id", h.get)
}

func (h *TrainHandler) list(c *gin.Context) {
	runs, err := h.service.List(c.Request.Context())
	writeRuns(c, runs, err)
}

// search takes source and destination stations. The optional date is
// checked for format only since every run operates daily.
func (h *TrainHandler) search(c *gin.Context) {
	if date := c.Query("date"); date != "" {
		if _, err := time.Parse(dateLayout, date); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "date must be YYYY-MM-DD", Field: "date"})
			return
		}
	}
	runs, err := h.service.Search(c.Request.Context(), c.Query("source"), c.Query("destination"))
	writeRuns(c, runs, err)
}

func (h *TrainHandler) byNumber(c *gin.Context) {
	runs, err := h.service.ByNumber(c.Request.Context(), c.Param("number"))
	writeRuns(c, runs, err)
}

func writeRuns(c *gin.Context, runs []domain.TrainRun, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]trainRunResponse, len(runs))
	for i := range runs {
		out[i] = toTrainRunResponse(&runs[i])
	}
	c.JSON(http.StatusOK, out)
}

func (h *TrainHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid id", Field: "id"})
		return
	}
	run, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTrainRunResponse(run))
}

func toTrainRunResponse(r *domain.TrainRun) trainRunResponse {
	return trainRunResponse{
		ID:             r.ID,
		Number:         r.Number,
		Name:           r.Name,
		Source:         r.Source,
		Destination:    r.Destination,
		DepartureTime:  r.DepartureTime,
		ArrivalTime:    r.ArrivalTime,
		Class:          r.Class,
		TotalSeats:     r.TotalSeats,
		AvailableSeats: r.AvailableSeats,
		Fare:           r.Fare.String(),
	}
}
