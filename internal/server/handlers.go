package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"files_connector/internal/dispatch"
	"files_connector/models"
)

const errorCodeInvalidRequest = "InvalidRequest"

func metricsHandler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok", Services: s.order})
}

func (s *Server) listServices(c *gin.Context) {
	out := make([]models.ServiceSummary, 0, len(s.order))
	for _, id := range s.order {
		svc := s.services[id].Manifest.Service()
		out = append(out, models.ServiceSummary{ID: svc.ID, Name: svc.Name, DisplayName: svc.DisplayName})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) lookup(c *gin.Context) (Service, bool) {
	id := c.Param("service")
	svc, ok := s.services[id]
	if !ok {
		sendError(c, http.StatusNotFound, dispatch.ErrorCodeFailed, "service "+id+" is not registered", "")
	}
	return svc, ok
}

func (s *Server) getService(c *gin.Context) {
	svc, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, svc.Manifest.Service())
}

func (s *Server) listOperations(c *gin.Context) {
	svc, ok := s.lookup(c)
	if !ok {
		return
	}
	expand := false
	if raw := c.Query("expand"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			sendError(c, http.StatusBadRequest, errorCodeInvalidRequest, "query parameter expand must be true or false", "")
			return
		}
		expand = v
	}
	c.JSON(http.StatusOK, svc.Manifest.Operations(expand))
}

func (s *Server) invoke(c *gin.Context) {
	svc, ok := s.lookup(c)
	if !ok {
		return
	}

	invocationID := c.GetHeader(InvocationHeader)
	if invocationID == "" {
		invocationID = uuid.NewString()
	}
	c.Header(InvocationHeader, invocationID)

	var req models.InvokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, errorCodeInvalidRequest, "invalid JSON body", "")
		return
	}

	resp, err := svc.Dispatcher.Invoke(c.Request.Context(), dispatch.Request{
		OperationID:  c.Param("operationId"),
		InvocationID: invocationID,
		Binding:      dispatch.NewConnectionParameters(req.ConnectionParameters),
		Params:       dispatch.NewParams(req.Parameters),
	})
	if err != nil {
		var perr *dispatch.ProviderError
		if !errors.As(err, &perr) {
			sendError(c, http.StatusInternalServerError, dispatch.ErrorCodeFailed, "operation failed", "")
			return
		}
		sendError(c, perr.HTTPStatus, perr.ErrorCode, perr.Message, perr.InnerError)
		return
	}
	c.JSON(resp.Status, models.InvokeResponse{Body: resp.Body})
}

func sendError(c *gin.Context, status int, code, message, inner string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{Error: models.ErrorDetail{
		Code:       code,
		Message:    message,
		InnerError: inner,
	}})
}
