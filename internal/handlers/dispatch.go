package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harborcare/notify/internal/services"
	"github.com/harborcare/notify/pkg/response"
)

// DispatchHandler exposes the notification creation endpoints.
type DispatchHandler struct {
	dispatcher *services.Dispatcher
}

// NewDispatchHandler constructs a dispatch handler.
func NewDispatchHandler(dispatcher *services.Dispatcher) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher}
}

// Create handles the generic creation request.
func (h *DispatchHandler) Create(c *gin.Context) {
	var input services.DispatchInput
	if !bindAndValidate(c, &input) {
		return
	}

	result, err := h.dispatcher.Dispatch(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// CreateTask handles the task template.
func (h *DispatchHandler) CreateTask(c *gin.Context) {
	var input services.TaskNotificationInput
	if !bindAndValidate(c, &input) {
		return
	}

	result, err := h.dispatcher.DispatchTask(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// CreateAlarm handles the alarm template.
func (h *DispatchHandler) CreateAlarm(c *gin.Context) {
	var input services.AlarmNotificationInput
	if !bindAndValidate(c, &input) {
		return
	}

	result, err := h.dispatcher.DispatchAlarm(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// CreateVisit handles the visit-status template.
func (h *DispatchHandler) CreateVisit(c *gin.Context) {
	var input services.VisitNotificationInput
	if !bindAndValidate(c, &input) {
		return
	}

	result, err := h.dispatcher.DispatchVisitStatus(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// CreateMedicine handles the medicine-reminder template.
func (h *DispatchHandler) CreateMedicine(c *gin.Context) {
	var input services.MedicineNotificationInput
	if !bindAndValidate(c, &input) {
		return
	}

	result, err := h.dispatcher.DispatchMedicine(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}
