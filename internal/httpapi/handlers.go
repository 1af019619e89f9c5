package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"fleet-resource-manager/internal/messaging"
	"fleet-resource-manager/internal/models"
	"fleet-resource-manager/internal/planner"
	rediscommon "fleet-resource-manager/internal/redis"
	"fleet-resource-manager/internal/repository"
	"fleet-resource-manager/internal/scheduler"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ReservationService 子区域预约操作
type ReservationService interface {
	ConfirmReservation(ctx context.Context, r *models.SubareaReservation) (uuid.UUID, bool, error)
	CancelReservationByID(ctx context.Context, id uuid.UUID) (*models.SubareaReservation, error)
	IsReservationPossible(ctx context.Context, candidate *models.SubareaReservation) (bool, error)
	GetEarliestReservationSlot(ctx context.Context, subAreaID int64, duration time.Duration) (time.Time, error)
}

// ReservationLister 按时间窗查询预约
type ReservationLister interface {
	ListBySubArea(ctx context.Context, subAreaID int64, from, to time.Time) ([]models.SubareaReservation, error)
}

// SubAreaLookup 子区域查询
type SubAreaLookup interface {
	SubArea(id int64) (models.SubArea, bool)
}

// PlanAssembler 路径计划组装
type PlanAssembler interface {
	Assemble(ctx context.Context, actions []models.Action) ([]models.Action, error)
}

// RequestLister 在途电梯请求
type RequestLister interface {
	Live() []models.RobotRequest
}

// Handler 车队资源管理 HTTP 接口
type Handler struct {
	reservations ReservationService
	schedule     ReservationLister
	subAreas     SubAreaLookup
	assembler    PlanAssembler
	requests     RequestLister
	now          func() time.Time
	logger       *zap.Logger
}

// NewHandler 创建 HTTP 处理器
func NewHandler(
	reservations ReservationService,
	schedule ReservationLister,
	subAreas SubAreaLookup,
	assembler PlanAssembler,
	requests RequestLister,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		reservations: reservations,
		schedule:     schedule,
		subAreas:     subAreas,
		assembler:    assembler,
		requests:     requests,
		now:          time.Now,
		logger:       logger,
	}
}

// ReservationResult 预约确认 / 可行性结果
type ReservationResult struct {
	ReservationID string `json:"reservation_id,omitempty"`
	SubAreaID     int64  `json:"subarea_id"`
	Admitted      bool   `json:"admitted"`
}

// EarliestSlotResult 最早可用时间
type EarliestSlotResult struct {
	SubAreaID     int64     `json:"subarea_id"`
	Duration      float64   `json:"duration"`
	EarliestStart time.Time `json:"earliest_start"`
}

// AssemblePlanRequest 计划组装请求
type AssemblePlanRequest struct {
	Actions []models.Action `json:"actions"`
}

// NewRouter 注册路由
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/reservations", h.ConfirmReservation).Methods(http.MethodPost)
	api.HandleFunc("/reservations/check", h.CheckReservation).Methods(http.MethodPost)
	api.HandleFunc("/reservations/{id}/cancel", h.CancelReservation).Methods(http.MethodPost)
	api.HandleFunc("/subareas/{id}/earliest-slot", h.EarliestSlot).Methods(http.MethodGet)
	api.HandleFunc("/subareas/{id}/reservations.xlsx", h.ExportSchedule).Methods(http.MethodGet)
	api.HandleFunc("/plans/assemble", h.AssemblePlan).Methods(http.MethodPost)
	api.HandleFunc("/elevator-requests", h.ListElevatorRequests).Methods(http.MethodGet)
	return router
}

// Health 健康检查
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
}

// ConfirmReservation POST /api/v1/reservations
func (h *Handler) ConfirmReservation(w http.ResponseWriter, r *http.Request) {
	res, ok := h.readReservation(w, r)
	if !ok {
		return
	}

	id, admitted, err := h.reservations.ConfirmReservation(r.Context(), res)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result := ReservationResult{SubAreaID: res.SubAreaID, Admitted: admitted}
	if admitted {
		result.ReservationID = id.String()
	}
	writeJSON(w, http.StatusOK, Ok(result))
}

// CheckReservation POST /api/v1/reservations/check
func (h *Handler) CheckReservation(w http.ResponseWriter, r *http.Request) {
	res, ok := h.readReservation(w, r)
	if !ok {
		return
	}

	admitted, err := h.reservations.IsReservationPossible(r.Context(), res)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(ReservationResult{SubAreaID: res.SubAreaID, Admitted: admitted}))
}

// CancelReservation POST /api/v1/reservations/{id}/cancel
func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid reservation id"))
		return
	}

	res, err := h.reservations.CancelReservationByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// EarliestSlot GET /api/v1/subareas/{id}/earliest-slot?duration=
func (h *Handler) EarliestSlot(w http.ResponseWriter, r *http.Request) {
	subAreaID, ok := subAreaIDVar(w, r)
	if !ok {
		return
	}
	duration, err := parseDuration(r.URL.Query().Get("duration"))
	if err != nil || duration <= 0 {
		writeJSON(w, http.StatusBadRequest, Fail("duration must be a positive duration"))
		return
	}

	slot, err := h.reservations.GetEarliestReservationSlot(r.Context(), subAreaID, duration)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(EarliestSlotResult{
		SubAreaID:     subAreaID,
		Duration:      duration.Seconds(),
		EarliestStart: slot,
	}))
}

// ExportSchedule GET /api/v1/subareas/{id}/reservations.xlsx?from=&to=
func (h *Handler) ExportSchedule(w http.ResponseWriter, r *http.Request) {
	subAreaID, ok := subAreaIDVar(w, r)
	if !ok {
		return
	}
	subArea, found := h.subAreas.SubArea(subAreaID)
	if !found {
		writeJSON(w, http.StatusNotFound, Fail(fmt.Sprintf("sub area %d not found", subAreaID)))
		return
	}

	now := h.now()
	from, err := parseTime(r.URL.Query().Get("from"), now)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid from"))
		return
	}
	to, err := parseTime(r.URL.Query().Get("to"), now.Add(24*time.Hour))
	if err != nil || to.Before(from) {
		writeJSON(w, http.StatusBadRequest, Fail("invalid to"))
		return
	}

	reservations, err := h.schedule.ListBySubArea(r.Context(), subAreaID, from, to)
	if err != nil {
		h.writeError(w, err)
		return
	}
	data, err := GenerateReservationSchedule(subArea, reservations)
	if err != nil {
		h.writeError(w, err)
		return
	}

	filename := fmt.Sprintf("subarea_%d_reservations_%s.xlsx", subAreaID, now.Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// AssemblePlan POST /api/v1/plans/assemble
func (h *Handler) AssemblePlan(w http.ResponseWriter, r *http.Request) {
	var req AssemblePlanRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	plan, err := h.assembler.Assemble(r.Context(), req.Actions)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(plan))
}

// ListElevatorRequests GET /api/v1/elevator-requests
func (h *Handler) ListElevatorRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.requests.Live()))
}

func (h *Handler) readReservation(w http.ResponseWriter, r *http.Request) (*models.SubareaReservation, bool) {
	var spec messaging.ReservationSpec
	if err := readBodyJSON(r, maxBodyBytes, &spec); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return nil, false
	}
	res, err := spec.ToReservation()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return nil, false
	}
	return res, true
}

func subAreaIDVar(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid sub area id"))
		return 0, false
	}
	return id, true
}

// writeError 按错误类型映射 HTTP 状态码
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repository.ErrReservationNotFound),
		errors.Is(err, scheduler.ErrUnknownSubArea):
		status = http.StatusNotFound
	case errors.Is(err, planner.ErrEmptyPlan),
		errors.Is(err, planner.ErrPlanEndsWithGoto),
		errors.Is(err, planner.ErrMissingArea):
		status = http.StatusBadRequest
	case errors.Is(err, rediscommon.ErrLockNotAcquired):
		status = http.StatusConflict
	case errors.Is(err, planner.ErrPlanningFailed):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, Fail(err.Error()))
}
