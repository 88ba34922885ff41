package service

import (
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/meidoworks/nekoq-dnsreplica/internal/httpserver"
	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

// RecordDocument is the JSON body of the record routes.
type RecordDocument struct {
	Domain     string `json:"domain"`
	RecordType string `json:"record_type"`
	Value      string `json:"value,omitempty"`
	FromCache  bool   `json:"from_cache"`
}

type StatusDocument struct {
	Role    string           `json:"role"`
	Metrics map[string]int64 `json:"metrics"`
}

const maxHttpBody = 64 * 1024

type HttpServiceContainer struct {
	h *httpserver.HttpServer

	records *RecordService
	log     *logrus.Entry
}

func NewHttpServiceContainer(h *httpserver.HttpServer) *HttpServiceContainer {
	c := &HttpServiceContainer{
		h:   h,
		log: logging.Component("http"),
	}
	h.GeneralErrorHandler = func(err error) {
		c.log.WithError(err).Error("[ERROR] http handler failed")
	}
	return c
}

func (h *HttpServiceContainer) SetupRecordService(records *RecordService) *HttpServiceContainer {
	h.records = records
	h.h.Add(httpserver.MethodGet, "/records/:domain/:type", h.getRecord)
	h.h.Add(httpserver.MethodPut, "/records/:domain/:type", h.putRecord)
	h.h.Add(httpserver.MethodDelete, "/records/:domain/:type", h.deleteRecord)
	h.h.Add(httpserver.MethodGet, "/status", h.status)
	return h
}

func recordParams(params httprouter.Params) (string, string) {
	return strings.TrimSpace(params.ByName("domain")), strings.TrimSpace(params.ByName("type"))
}

func (h *HttpServiceContainer) getRecord(request *http.Request, params httprouter.Params) (iface.HttpResult, error) {
	domain, recordType := recordParams(params)
	res, err := h.records.Query(request.Context(), domain, recordType)
	switch {
	case errors.Is(err, shared.ErrInvalidArgument):
		return iface.JsonErrorResult(http.StatusBadRequest, err.Error()), nil
	case errors.Is(err, shared.ErrStorageNotFound):
		return iface.JsonErrorResult(http.StatusNotFound, ReplyNotFound), nil
	case err != nil:
		return nil, err
	}
	return iface.JsonResult(http.StatusOK, RecordDocument{
		Domain:     res.Record.Domain,
		RecordType: res.Record.RecordType,
		Value:      res.Record.Value,
		FromCache:  res.FromCache,
	}), nil
}

// putRecord takes the raw request body as the record value.
func (h *HttpServiceContainer) putRecord(request *http.Request, params httprouter.Params) (iface.HttpResult, error) {
	domain, recordType := recordParams(params)
	dat, err := io.ReadAll(io.LimitReader(request.Body, maxHttpBody))
	if err != nil {
		return nil, errors.Wrap(err, "read http body")
	}
	value := strings.TrimSpace(string(dat))
	err = h.records.AddOrUpdate(request.Context(), domain, recordType, value)
	switch {
	case errors.Is(err, shared.ErrInvalidArgument):
		return iface.JsonErrorResult(http.StatusBadRequest, err.Error()), nil
	case err != nil:
		return nil, err
	}
	return iface.JsonResult(http.StatusOK, RecordDocument{
		Domain:     domain,
		RecordType: recordType,
		Value:      value,
	}), nil
}

func (h *HttpServiceContainer) deleteRecord(request *http.Request, params httprouter.Params) (iface.HttpResult, error) {
	domain, recordType := recordParams(params)
	err := h.records.Delete(request.Context(), domain, recordType)
	switch {
	case errors.Is(err, shared.ErrInvalidArgument):
		return iface.JsonErrorResult(http.StatusBadRequest, err.Error()), nil
	case err != nil:
		return nil, err
	}
	return iface.StatusOnlyResult(http.StatusNoContent), nil
}

func (h *HttpServiceContainer) status(*http.Request, httprouter.Params) (iface.HttpResult, error) {
	return iface.JsonResult(http.StatusOK, StatusDocument{
		Role:    h.records.Role().String(),
		Metrics: h.records.Metrics().Snapshot(),
	}), nil
}

func (h *HttpServiceContainer) Startup() error {
	return h.h.Startup()
}

func (h *HttpServiceContainer) Addr() string {
	return h.h.Addr()
}

func (h *HttpServiceContainer) Stop() error {
	return h.h.Stop()
}
