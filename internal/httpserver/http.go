package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
	"github.com/meidoworks/nekoq-dnsreplica/logging"
)

type HttpMethod string

var (
	MethodGet    HttpMethod = http.MethodGet
	MethodPut    HttpMethod = http.MethodPut
	MethodDelete HttpMethod = http.MethodDelete
)

const shutdownTimeout = 5 * time.Second

type HttpServer struct {
	router *httprouter.Router

	listenAddr string
	ln         net.Listener

	server *http.Server

	GeneralErrorHandler func(err error)
}

func NewHttpServer(addr string) *HttpServer {
	h := httprouter.New()

	return &HttpServer{
		router:     h,
		listenAddr: addr,
	}
}

func (h *HttpServer) Add(method HttpMethod, path string, handler iface.HttpHandler) {
	h.router.Handle(newHandle(method, path, handler, h.GeneralErrorHandler))
}

func (h *HttpServer) Handler() http.Handler {
	return h.router
}

func (h *HttpServer) Startup() error {
	ln, err := net.Listen("tcp", h.listenAddr)
	if err != nil {
		return err
	}
	h.ln = ln
	server := &http.Server{
		Addr:              h.listenAddr,
		Handler:           h.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.server = server
	go func() {
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.Log.WithError(err).Error("[ERROR] http server stopped")
		}
	}()
	return nil
}

// Addr is the bound address, valid after Startup.
func (h *HttpServer) Addr() string {
	if h.ln == nil {
		return h.listenAddr
	}
	return h.ln.Addr().String()
}

func (h *HttpServer) Stop() error {
	if h.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.server.Shutdown(ctx)
}

func newHandle(m HttpMethod, p string, h iface.HttpHandler, ef func(err error)) (method, path string, handle httprouter.Handle) {
	return string(m), p, func(writer http.ResponseWriter, request *http.Request, params httprouter.Params) {
		r, err := h(request, params)
		if err != nil {
			if ef != nil {
				ef(err)
			}
			writer.WriteHeader(http.StatusInternalServerError)
			return
		} else {
			if err := r.Render(writer); err != nil {
				if ef != nil {
					ef(err)
				}
			}
		}
	}
}
