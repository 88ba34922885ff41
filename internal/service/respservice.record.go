package service

import (
	"context"
	"errors"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/internal/shared"
)

const (
	CommandRecordGet = "RECORD.GET"
	CommandRecordSet = "RECORD.SET"
	CommandRecordDel = "RECORD.DEL"
	CommandRole      = "REPLICATOR.ROLE"
)

const replyInvalidIdentity = "invalid domain or record type"

// RespRecordHandler exposes the record service as RESP commands.
type RespRecordHandler struct {
	records *RecordService
}

func NewRespRecordHandler(records *RecordService) RespRecordHandler {
	return RespRecordHandler{
		records: records,
	}
}

func (h RespRecordHandler) Register(reg iface.RespRegister) {
	reg.AddCommandHandler(CommandRecordGet, iface.RespArity(3, "RECORD.GET <domain> <record_type>", h.get))
	reg.AddCommandHandler(CommandRecordSet, iface.RespArity(4, "RECORD.SET <domain> <record_type> <value>", h.set))
	reg.AddCommandHandler(CommandRecordDel, iface.RespArity(3, "RECORD.DEL <domain> <record_type>", h.del))
	reg.AddCommandHandler(CommandRole, iface.RespArity(1, "REPLICATOR.ROLE", h.role))
}

// get replies [value, "cache"|"store"] or nil.
func (h RespRecordHandler) get(args []iface.RespArg) (iface.RespResult, error) {
	res, err := h.records.Query(context.Background(), args[1].String(), args[2].String())
	switch {
	case errors.Is(err, shared.ErrStorageNotFound):
		return iface.RespNilResult(), nil
	case errors.Is(err, shared.ErrInvalidArgument):
		return iface.RespErrorResult(replyInvalidIdentity), nil
	case err != nil:
		h.records.log.WithError(err).Error("RespRecordHandler get failed")
		return iface.RespErrorResult("Get record failed."), nil
	}
	source := "store"
	if res.FromCache {
		source = "cache"
	}
	return iface.RespBulkStringsResult(res.Record.Value, source), nil
}

func (h RespRecordHandler) set(args []iface.RespArg) (iface.RespResult, error) {
	err := h.records.AddOrUpdate(context.Background(), args[1].String(), args[2].String(), args[3].String())
	switch {
	case errors.Is(err, shared.ErrInvalidArgument):
		return iface.RespErrorResult(replyInvalidIdentity), nil
	case err != nil:
		h.records.log.WithError(err).Error("RespRecordHandler set failed")
		return iface.RespErrorResult("Set record failed."), nil
	}
	return iface.RespStatusResult("OK"), nil
}

func (h RespRecordHandler) del(args []iface.RespArg) (iface.RespResult, error) {
	err := h.records.Delete(context.Background(), args[1].String(), args[2].String())
	switch {
	case errors.Is(err, shared.ErrInvalidArgument):
		return iface.RespErrorResult(replyInvalidIdentity), nil
	case err != nil:
		h.records.log.WithError(err).Error("RespRecordHandler del failed")
		return iface.RespErrorResult("Delete record failed."), nil
	}
	return iface.RespStatusResult("OK"), nil
}

// role replies 1 for the primary and 2 for the secondary.
func (h RespRecordHandler) role([]iface.RespArg) (iface.RespResult, error) {
	switch h.records.Role() {
	case iface.RolePrimary:
		return iface.RespIntResult(1), nil
	case iface.RoleSecondary:
		return iface.RespIntResult(2), nil
	default:
		return iface.RespErrorResult("Unknown role"), nil
	}
}
