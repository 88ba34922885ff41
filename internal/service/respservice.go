package service

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/redcon"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

var _ iface.RespRegister = new(Resp2Service)

// Resp2Service is a RESP2 command server. Handlers are looked up by the
// lower-cased command name.
type Resp2Service struct {
	server         *redcon.Server
	commandMapping map[string]iface.RespCommandHandler

	config *RespServiceConfig
	log    *logrus.Entry
}

type RespServiceConfig struct {
	Addr string
}

func NewResp2Service(config *RespServiceConfig) *Resp2Service {
	r := new(Resp2Service)

	server := redcon.NewServerNetwork("tcp", config.Addr, r.processCommand, r.acceptConn, r.closedConn)
	r.server = server
	r.config = config
	r.log = logging.Component("resp")
	r.commandMapping = make(map[string]iface.RespCommandHandler)
	r.AddCommandHandler("PING", func(args []iface.RespArg) (iface.RespResult, error) {
		return iface.RespStatusResult("PONG"), nil
	})

	return r
}

// Startup returns once the listener is bound; serving continues in the background.
func (r *Resp2Service) Startup() error {
	signal := make(chan error, 1)
	go func() {
		if err := r.server.ListenServeAndSignal(signal); err != nil {
			r.log.WithError(err).Debug("[DEBUG] Resp2Service stopped")
		}
	}()
	if err := <-signal; err != nil {
		return err
	}
	r.log.Info("[INFO] RESP endpoint is listening on ", r.server.Addr().String())
	return nil
}

func (r *Resp2Service) Addr() string {
	return r.server.Addr().String()
}

func (r *Resp2Service) Stop() error {
	return r.server.Close()
}

func (r *Resp2Service) processCommand(conn redcon.Conn, cmd redcon.Command) {
	c := strings.ToLower(string(cmd.Args[0]))
	h, ok := r.commandMapping[c]
	if !ok {
		conn.WriteError("Unknown Command:" + c)
		return
	}
	args := make([]iface.RespArg, 0, len(cmd.Args))
	for _, v := range cmd.Args {
		args = append(args, v)
	}
	result, err := h(args)
	if err != nil {
		r.log.WithError(err).Error("Resp2Service process command failed")
		conn.WriteError("Failure")
		return
	}
	if err := result(conn); err != nil {
		r.log.WithError(err).Error("Resp2Service render result failed")
		return
	}
}

func (r *Resp2Service) AddCommandHandler(command string, h iface.RespCommandHandler) {
	r.commandMapping[strings.ToLower(command)] = h
}

func (r *Resp2Service) acceptConn(conn redcon.Conn) bool {
	r.log.Debug("Resp2Service accept redis proto peer connection:", conn.RemoteAddr())
	return true
}

func (r *Resp2Service) closedConn(conn redcon.Conn, err error) {
	r.log.Debug("Resp2Service close redis proto peer connection:", conn.RemoteAddr(), " error:", err)
}
